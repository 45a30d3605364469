package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

func loginCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and remember the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
		},
		Action: func(c *cli.Context) error {
			email := c.String("email")
			token, err := sh.client.Login(c.Context, email)
			if err != nil {
				return err
			}
			if err := sh.sessions.Save(token, email); err != nil {
				return err
			}
			sh.printf("Signed in as %s\n", email)
			return nil
		},
	}
}

func logoutCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored session",
		Action: func(c *cli.Context) error {
			if err := sh.sessions.Clear(); err != nil {
				return err
			}
			sh.printf("Signed out\n")
			return nil
		},
	}
}

func productsCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "list the catalog",
		Action: func(c *cli.Context) error {
			list, err := sh.client.ListProducts(c.Context)
			if err != nil {
				return err
			}
			sh.renderProducts(list)
			return nil
		},
	}
}

// loadCart returns a cart store with a fresh snapshot.
func (sh *shell) loadCart(c *cli.Context) (*cart.Store, error) {
	store := cart.NewStore(sh.client, sh.notes)
	if _, err := store.Refresh(c.Context); err != nil {
		return nil, err
	}
	return store, nil
}

// withCart runs fn against a loaded cart and prints the result.
func (sh *shell) withCart(fn func(c *cli.Context, store *cart.Store) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		store, err := sh.loadCart(c)
		if err != nil {
			return err
		}
		if err := fn(c, store); err != nil {
			return err
		}
		sh.renderCart(store.Snapshot())
		return nil
	}
}

func cartItem(store *cart.Store, id string) (storefront.CartItem, error) {
	item, ok := store.Snapshot().Item(id)
	if !ok {
		return item, errors.Errorf("no cart item %q", id)
	}
	return item, nil
}

func intArg(c *cli.Context, i int, def int) (int, error) {
	if c.NArg() <= i {
		return def, nil
	}
	n, err := strconv.Atoi(c.Args().Get(i))
	if err != nil {
		return 0, errors.Errorf("%q is not a number", c.Args().Get(i))
	}
	return n, nil
}

func cartCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:   "cart",
		Usage:  "show or change the cart",
		Before: sh.requireSession,
		Action: sh.withCart(func(*cli.Context, *cart.Store) error { return nil }),
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add a product",
				ArgsUsage: "<productId> [quantity]",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					qty, err := intArg(c, 1, 1)
					if err != nil {
						return err
					}
					return reported(store.AddItem(c.Context, c.Args().First(), qty))
				}),
			},
			{
				Name:      "set",
				Usage:     "change an item's quantity",
				ArgsUsage: "<itemId> <quantity>",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					item, err := cartItem(store, c.Args().First())
					if err != nil {
						return err
					}
					qty, err := intArg(c, 1, 0)
					if err != nil {
						return err
					}
					return reported(store.UpdateQuantity(c.Context, item, qty))
				}),
			},
			{
				Name:      "rm",
				Usage:     "remove an item",
				ArgsUsage: "<itemId>",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					item, err := cartItem(store, c.Args().First())
					if err != nil {
						return err
					}
					return reported(store.RemoveItem(c.Context, item))
				}),
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					return reported(store.Clear(c.Context))
				}),
			},
		},
	}
}

func couponCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:   "coupon",
		Usage:  "apply or remove a coupon",
		Before: sh.requireSession,
		Subcommands: []*cli.Command{
			{
				Name:      "apply",
				ArgsUsage: "<code>",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					return reported(store.ApplyCoupon(c.Context, c.Args().First()))
				}),
			},
			{
				Name: "remove",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					return reported(store.RemoveCoupon(c.Context))
				}),
			},
		},
	}
}

func shippingCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:   "shipping",
		Usage:  "list or choose a shipping method",
		Before: sh.requireSession,
		Action: func(c *cli.Context) error {
			methods, err := sh.client.ListShippingMethods(c.Context)
			if err != nil {
				return err
			}
			sh.renderShipping(methods)
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				ArgsUsage: "<methodId>",
				Action: sh.withCart(func(c *cli.Context, store *cart.Store) error {
					return reported(store.ApplyShipping(c.Context, c.Args().First()))
				}),
			},
		},
	}
}

func addressesCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:   "addresses",
		Usage:  "list or add delivery addresses",
		Before: sh.requireSession,
		Action: func(c *cli.Context) error {
			p, err := sh.client.GetProfile(c.Context)
			if err != nil {
				return err
			}
			sh.renderAddresses(p.Addresses)
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name: "add",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "street", Required: true},
					&cli.StringFlag{Name: "city", Required: true},
					&cli.StringFlag{Name: "zip", Required: true},
					&cli.StringFlag{Name: "country", Value: "IN"},
					&cli.StringFlag{Name: "type", Usage: "home, work or other"},
					&cli.BoolFlag{Name: "default"},
				},
				Action: func(c *cli.Context) error {
					o := sh.newCheckout(cart.NewStore(sh.client, sh.notes), nil)
					addr, err := o.AddAddress(c.Context, storefront.Address{
						Street:    c.String("street"),
						City:      c.String("city"),
						ZipCode:   c.String("zip"),
						Country:   c.String("country"),
						Type:      c.String("type"),
						IsDefault: c.Bool("default"),
					})
					if err != nil {
						return reported(err)
					}
					sh.printf("Address id: %s\n", addr.ID)
					return nil
				},
			},
		},
	}
}

func ordersCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:   "orders",
		Usage:  "list your orders or show one",
		Before: sh.requireSession,
		Action: func(c *cli.Context) error {
			list, err := sh.client.ListOrders(c.Context)
			if err != nil {
				return err
			}
			sh.renderOrders(list)
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				ArgsUsage: "<orderId>",
				Action: func(c *cli.Context) error {
					o, err := sh.client.GetOrder(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					sh.renderOrder(*o)
					return nil
				},
			},
		},
	}
}

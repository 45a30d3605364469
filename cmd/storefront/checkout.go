package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/notify"
	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
)

// newCheckout builds an orchestrator that prints notifications and navigation.
// navigated, when non-nil, also receives each navigation target.
func (sh *shell) newCheckout(store *cart.Store, navigated chan<- string, extra ...notify.Notifier) *checkout.Orchestrator {
	notes := notify.Multi{sh.notes}
	notes = append(notes, extra...)
	nav := checkout.NavigatorFunc(func(path string) {
		sh.printf("-> %s\n", path)
		if navigated != nil {
			navigated <- path
		}
	})
	return checkout.New(checkout.Config{
		API:       sh.client,
		Cart:      store,
		Gateway:   sh.gateway,
		Navigator: nav,
		Notifier:  notes,
		Theme:     "#0f766e",
	})
}

func checkoutCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:   "checkout",
		Usage:  "place an order for the current cart",
		Before: sh.requireSession,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Usage: "address id (defaults to your default address)"},
			&cli.StringFlag{Name: "phone", Usage: "10-digit mobile number"},
			&cli.StringFlag{Name: "shipping", Usage: "shipping method id, when the cart has none"},
			&cli.StringFlag{Name: "method", Value: string(storefront.PaymentOnline), Usage: "online or cod"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			store, err := sh.loadCart(c)
			if err != nil {
				return err
			}

			finished := make(chan notify.Notification, 8)
			navigated := make(chan string, 1)
			o := sh.newCheckout(store, navigated, notify.Func(func(n notify.Notification) {
				select {
				case finished <- n:
				default:
				}
			}))

			if err := o.LoadAddresses(ctx); err != nil {
				return reported(err)
			}
			if id := c.String("address"); id != "" {
				if err := o.SelectAddress(id); err != nil {
					return err
				}
			}
			if phone := c.String("phone"); phone != "" {
				o.SetPhone(phone)
			}
			if err := o.Continue(); err != nil {
				return reported(err)
			}

			if o.NeedsShipping() {
				id := c.String("shipping")
				if id == "" {
					methods, err := o.ShippingOptions(ctx)
					if err != nil {
						return err
					}
					sh.renderShipping(methods)
					return errors.New("choose a shipping method with --shipping")
				}
				if err := o.ApplyShipping(ctx, id); err != nil {
					return reported(err)
				}
			}
			if err := o.SelectPayment(storefront.PaymentMethod(c.String("method"))); err != nil {
				return reported(err)
			}

			sh.renderCart(store.Snapshot())
			for len(finished) > 0 {
				<-finished
			}
			if err := o.PlaceOrder(ctx); err != nil {
				return reported(err)
			}
			if o.PaymentMethod() == storefront.PaymentCOD {
				return nil
			}

			// online: the gateway answers through the orchestrator's callbacks
			select {
			case n := <-finished:
				if n.Level == notify.LevelError {
					return reported(errors.New(n.Message))
				}
				if n.Level == notify.LevelInfo {
					sh.printf("Order %s is waiting for payment\n", o.Attempt().OrderID)
					return nil
				}
				select {
				case <-navigated:
				case <-ctx.Done():
				}
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

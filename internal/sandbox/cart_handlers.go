package sandbox

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

func (s *Server) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": s.catalog.Products()})
}

func (s *Server) getProduct(c *gin.Context) {
	p, ok := s.catalog.Product(c.Param("id"))
	if !ok {
		fail(c, http.StatusNotFound, "not_found", "Product not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (s *Server) listShippingMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"shippingMethods": s.catalog.ShippingMethods()}})
}

func (s *Server) getCart(c *gin.Context) {
	st, err := s.carts.Get(c.Request.Context(), userID(c))
	if err != nil {
		s.internalError(c, "load cart", err)
		return
	}
	s.respondCart(c, st)
}

func (s *Server) clearCart(c *gin.Context) {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()
	if err := s.carts.Delete(c.Request.Context(), userID(c)); err != nil {
		s.internalError(c, "clear cart", err)
		return
	}
	s.respondCart(c, newCartState())
}

func (s *Server) addItem(c *gin.Context) {
	var req validation.AddItemRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	s.mutateCart(c, func(st *CartState) *rejection {
		p, ok := s.catalog.Product(req.ProductID)
		if !ok {
			return reject(http.StatusNotFound, "Product not found")
		}
		if i, ok := st.lineForProduct(p.ID); ok {
			qty := st.Items[i].Quantity + req.Quantity
			if qty > p.Stock {
				return reject(http.StatusBadRequest, "%s", stockMessage(p.Name, p.Stock))
			}
			st.Items[i].Quantity = qty
			return nil
		}
		if req.Quantity > p.Stock {
			return reject(http.StatusBadRequest, "%s", stockMessage(p.Name, p.Stock))
		}
		st.Items = append(st.Items, CartLine{ID: uuid.NewString(), ProductID: p.ID, Quantity: req.Quantity, PriceAtAdd: p.Price})
		return nil
	})
}

func (s *Server) updateItem(c *gin.Context) {
	var req validation.UpdateQuantityRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	s.mutateCart(c, func(st *CartState) *rejection {
		i, ok := st.line(c.Param("itemId"))
		if !ok {
			return reject(http.StatusNotFound, "Item not found in cart")
		}
		p, _ := s.catalog.Product(st.Items[i].ProductID)
		if req.Quantity > p.Stock {
			return reject(http.StatusBadRequest, "%s", stockMessage(p.Name, p.Stock))
		}
		st.Items[i].Quantity = req.Quantity
		return nil
	})
}

func (s *Server) removeItem(c *gin.Context) {
	s.mutateCart(c, func(st *CartState) *rejection {
		i, ok := st.line(c.Param("itemId"))
		if !ok {
			return reject(http.StatusNotFound, "Item not found in cart")
		}
		st.Items = append(st.Items[:i], st.Items[i+1:]...)
		return nil
	})
}

func (s *Server) applyCoupon(c *gin.Context) {
	var req validation.ApplyCouponRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	s.mutateCart(c, func(st *CartState) *rejection {
		if len(st.Items) == 0 {
			return reject(http.StatusBadRequest, "Your cart is empty")
		}
		if _, err := s.catalog.Coupon(code); err != nil {
			if errors.Is(err, ErrCouponExpired) {
				return reject(http.StatusBadRequest, "Coupon %s has expired", code)
			}
			return reject(http.StatusBadRequest, "Invalid coupon code")
		}
		st.CouponCode = code
		return nil
	})
}

func (s *Server) removeCoupon(c *gin.Context) {
	s.mutateCart(c, func(st *CartState) *rejection {
		st.CouponCode = ""
		return nil
	})
}

func (s *Server) applyShipping(c *gin.Context) {
	var req validation.ApplyShippingRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	s.mutateCart(c, func(st *CartState) *rejection {
		if _, ok := s.catalog.ShippingMethod(req.MethodID); !ok {
			return reject(http.StatusBadRequest, "Invalid shipping method")
		}
		st.ShippingMethod = req.MethodID
		return nil
	})
}

// rejection is a client error raised while mutating a cart.
type rejection struct {
	status  int
	message string
}

func reject(status int, format string, args ...interface{}) *rejection {
	return &rejection{status: status, message: fmt.Sprintf(format, args...)}
}

// mutateCart loads the caller's cart, applies fn and saves it. A rejection from fn
// is returned to the client as is and nothing is saved.
func (s *Server) mutateCart(c *gin.Context, fn func(*CartState) *rejection) {
	ctx := c.Request.Context()
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	st, err := s.carts.Get(ctx, userID(c))
	if err != nil {
		s.internalError(c, "load cart", err)
		return
	}
	if r := fn(st); r != nil {
		fail(c, r.status, "cart_rejected", r.message)
		return
	}
	st.UpdatedAt = time.Now().UTC()
	if err := s.carts.Save(ctx, userID(c), st); err != nil {
		s.internalError(c, "save cart", err)
		return
	}
	s.respondCart(c, st)
}

func (s *Server) respondCart(c *gin.Context, st *CartState) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": s.price(st)})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.WithError(err).WithField("op", op).Error("request failed")
	fail(c, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
}

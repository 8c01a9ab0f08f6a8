package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/kv"
)

// Product is the catalog view of an item as the storefront sees it.
type Product struct {
	ProductID      int64           `json:"productId"`
	ProductName    string          `json:"productName"`
	UnitType       UnitType        `json:"unitType"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	UnitsAvailable decimal.Decimal `json:"unitsAvailable"`
}

func (p Product) line(units decimal.Decimal) Line {
	return Line{
		ProductID:      p.ProductID,
		ProductName:    p.ProductName,
		UnitType:       p.UnitType,
		UnitPrice:      p.UnitPrice,
		Units:          units,
		UnitsAvailable: p.UnitsAvailable,
	}
}

// Cart is the live, editable cart.
type Cart struct {
	Lines []Line `json:"lines"`
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c *Cart) Total() decimal.Decimal { return ComputeTotal(c.Lines) }

func (c *Cart) index(productID int64) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add puts product in the cart with units, replacing the units of an existing line.
func (c *Cart) Add(p Product, units decimal.Decimal) error {
	if p.ProductID <= 0 || !p.UnitType.Valid() || !p.UnitPrice.IsPositive() {
		return apperr.New(apperr.KindValidation, "This product cannot be added to the cart.")
	}
	if !units.IsPositive() {
		return apperr.New(apperr.KindValidation, "Choose a quantity greater than zero.")
	}
	if units.GreaterThan(p.UnitsAvailable) {
		return apperr.New(apperr.KindStock, fmt.Sprintf("Only %s of %s in stock.", p.UnitsAvailable.String(), p.ProductName))
	}

	l := p.line(units)
	l.Units = ClampUnits(l, units)
	if i := c.index(p.ProductID); i >= 0 {
		c.Lines[i] = l
		return nil
	}
	c.Lines = append(c.Lines, l)
	return nil
}

// UpdateUnits changes the quantity of a line. Zero or less removes it.
func (c *Cart) UpdateUnits(productID int64, units decimal.Decimal) error {
	i := c.index(productID)
	if i < 0 {
		return apperr.New(apperr.KindValidation, "That product is not in your cart.")
	}
	if !units.IsPositive() {
		c.Remove(productID)
		return nil
	}
	c.Lines[i].Units = ClampUnits(c.Lines[i], units)
	return nil
}

// Remove drops the line for productID if present.
func (c *Cart) Remove(productID int64) {
	if i := c.index(productID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// Snapshot freezes the current lines.
func (c *Cart) Snapshot(now time.Time) Snapshot {
	return NewSnapshot(c.Lines, now)
}

// Wishlist is the saved-products list.
type Wishlist struct {
	Items []Product `json:"items"`
}

// Toggle adds p when absent and removes it otherwise. It reports whether p is now listed.
func (w *Wishlist) Toggle(p Product) bool {
	for i, it := range w.Items {
		if it.ProductID == p.ProductID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			return false
		}
	}
	w.Items = append(w.Items, p)
	return true
}

func (w *Wishlist) Contains(productID int64) bool {
	for _, it := range w.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

const (
	cartKey     = "cart"
	wishlistKey = "wishlist"
)

// Store persists the cart and wishlist of one client.
type Store struct {
	kv kv.Store
}

// NewStore expects a client-scoped store (see kv.Namespace).
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

func (s *Store) Load(ctx context.Context) (*Cart, error) {
	c := &Cart{}
	if _, err := kv.GetJSON(ctx, s.kv, cartKey, c); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

func (s *Store) Save(ctx context.Context, c *Cart) error {
	if err := kv.PutJSON(ctx, s.kv, cartKey, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Clear empties the live cart. The wishlist is kept.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, cartKey); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Store) LoadWishlist(ctx context.Context) (*Wishlist, error) {
	w := &Wishlist{}
	if _, err := kv.GetJSON(ctx, s.kv, wishlistKey, w); err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}
	return w, nil
}

func (s *Store) SaveWishlist(ctx context.Context, w *Wishlist) error {
	if err := kv.PutJSON(ctx, s.kv, wishlistKey, w); err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	return nil
}

// SaveForLater moves a cart line to the wishlist.
func (s *Store) SaveForLater(ctx context.Context, productID int64) error {
	c, err := s.Load(ctx)
	if err != nil {
		return err
	}
	i := c.index(productID)
	if i < 0 {
		return apperr.New(apperr.KindValidation, "That product is not in your cart.")
	}
	l := c.Lines[i]

	w, err := s.LoadWishlist(ctx)
	if err != nil {
		return err
	}
	if !w.Contains(productID) {
		w.Items = append(w.Items, Product{
			ProductID:      l.ProductID,
			ProductName:    l.ProductName,
			UnitType:       l.UnitType,
			UnitPrice:      l.UnitPrice,
			UnitsAvailable: l.UnitsAvailable,
		})
	}
	// Wishlist first: a failure between the two writes leaves a duplicate, never a loss.
	if err := s.SaveWishlist(ctx, w); err != nil {
		return err
	}
	c.Remove(productID)
	return s.Save(ctx, c)
}

package workflow

// ItemKind tells where a billable line came from
type ItemKind string

const (
	ItemKindPart          ItemKind = "part"
	ItemKindService       ItemKind = "service"
	ItemKindCustomPart    ItemKind = "custom_part"
	ItemKindCustomService ItemKind = "custom_service"
)

// Item is a billable line on the visit.
// CatalogID keeps the inventory or provider-service id so the line can be
// matched against the remote job record later.
type Item struct {
	ID        string   `json:"id"`
	CatalogID string   `json:"catalog_id,omitempty"`
	Kind      ItemKind `json:"kind"`
	Name      string   `json:"name"`
	UnitPrice float64  `json:"unit_price"`
	Quantity  int      `json:"quantity"`
}

// EffectiveQuantity treats a missing quantity as one unit
func (i Item) EffectiveQuantity() int {
	if i.Quantity < 1 {
		return 1
	}
	return i.Quantity
}

// LineTotal returns unit price times effective quantity
func (i Item) LineTotal() float64 {
	return i.UnitPrice * float64(i.EffectiveQuantity())
}

// Ledger is the ordered collection of billable lines.
// Appending the same catalog entry twice yields two lines.
type Ledger []Item

// Append returns a new ledger with the item added at the end.
// The receiver is never modified so older states stay intact; the price
// is one copy of the ledger per add.
func (l Ledger) Append(item Item) Ledger {
	out := make(Ledger, len(l), len(l)+1)
	copy(out, l)
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return append(out, item)
}

// Total sums every line
func (l Ledger) Total() float64 {
	var sum float64
	for _, item := range l {
		sum += item.LineTotal()
	}
	return sum
}

// Len returns the number of lines
func (l Ledger) Len() int {
	return len(l)
}

package entity

// InventoryItem is a part the technician may take from stock
type InventoryItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ProviderService is a priced service offered by the provider
type ProviderService struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// Custom item kinds
const (
	CustomKindPart    = "part"
	CustomKindService = "service"
)

// CustomItem is an ad-hoc billable line created on the job
type CustomItem struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description,omitempty"`
}

// PartLine adds a quantity of an inventory item to a job
type PartLine struct {
	InventoryItemID string `json:"inventory_item_id"`
	Quantity        int    `json:"quantity"`
}

// ServiceLine adds a provider service to a job
type ServiceLine struct {
	ProviderOfferedServiceID string `json:"provider_offered_service_id"`
	Quantity                 int    `json:"quantity"`
}

// PartsPendingRequest reschedules a job until the required parts arrive
type PartsPendingRequest struct {
	RequiredParts         []string `json:"required_parts"`
	EstimatedAvailability string   `json:"estimated_availability,omitempty"`
	ExpectedReturnDate    string   `json:"expected_return_date"`
	Notes                 string   `json:"notes,omitempty"`
}

// WorkshopRequest takes the unit to the workshop
type WorkshopRequest struct {
	ItemDescription         string  `json:"item_description"`
	RepairRequired          string  `json:"repair_required"`
	EstimatedCost           float64 `json:"estimated_cost"`
	EstimatedCompletionTime string  `json:"estimated_completion_time,omitempty"`
	ExpectedReturnDate      string  `json:"expected_return_date"`
	Notes                   string  `json:"notes,omitempty"`
}

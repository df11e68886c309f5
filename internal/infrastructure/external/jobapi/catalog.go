package jobapi

import "github.com/garyjia/fieldjob/internal/domain/entity"

// inventoryPage is the wire shape of GET /inventory/items
type inventoryPage struct {
	Items []struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		SKU       string  `json:"sku"`
		UnitPrice float64 `json:"unitPrice"`
		Quantity  int     `json:"quantity"`
	} `json:"items"`
}

func (p inventoryPage) toEntities() []entity.InventoryItem {
	items := make([]entity.InventoryItem, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, entity.InventoryItem{
			ID:       it.ID,
			Name:     it.Name,
			SKU:      it.SKU,
			Price:    it.UnitPrice,
			Quantity: it.Quantity,
		})
	}
	return items
}

// servicePage is the wire shape of GET /provider/services.
// Name and price live on the nested service definition.
type servicePage struct {
	Services []struct {
		ID      string `json:"id"`
		Service struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			BasePrice   float64 `json:"basePrice"`
		} `json:"service"`
	} `json:"services"`
}

func (p servicePage) toEntities() []entity.ProviderService {
	services := make([]entity.ProviderService, 0, len(p.Services))
	for _, s := range p.Services {
		services = append(services, entity.ProviderService{
			ID:          s.ID,
			Name:        s.Service.Name,
			Description: s.Service.Description,
			Price:       s.Service.BasePrice,
		})
	}
	return services
}

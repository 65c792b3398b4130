package messages

type Product struct {
	ProductID       string  `json:"productId"`
	ProductName     string  `json:"productName"`
	Description     string  `json:"description,omitempty"`
	ProductPrice    float64 `json:"productPrice"`
	DiscountedPrice float64 `json:"discountedPrice,omitempty"`
	CategoryName    string  `json:"categoryName,omitempty"`
	Availability    bool    `json:"availability"`
	Stock           int     `json:"stock"`
	SellerID        string  `json:"sellerId"`
}

// ProductDetailsRequest is the body of a product-details RPC.
type ProductDetailsRequest struct {
	ProductIDs []string `json:"productIds"`
}

type LowStockProduct struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// LowStockNotice asks the notification service to warn a seller that
// some of their products are running low.
type LowStockNotice struct {
	Email                  string            `json:"email"`
	SellerName             string            `json:"sellerName"`
	LowStockProducts       []LowStockProduct `json:"lowStockProducts"`
	InventoryDashboardLink string            `json:"inventoryDashboardLink"`
}

package model

import "time"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Product struct {
	ID          int     `json:"id"`
	SellerID    int     `json:"seller_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    *string `json:"image_url"`
}

type OrderItem struct {
	ID        int     `json:"id"`
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Order struct {
	ID          int         `json:"id"`
	BuyerID     int         `json:"buyer_id"`
	TotalAmount float64     `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Items       []OrderItem `json:"items"`
}

// SellerOrderLine is one flat row of the seller order feed: a single order
// item joined with its order and buyer.
type SellerOrderLine struct {
	ID          int         `json:"id"`
	ProductID   int         `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	Price       float64     `json:"price"`
	OrderID     int         `json:"order_id"`
	BuyerEmail  string      `json:"buyer_email"`
	OrderStatus OrderStatus `json:"order_status"`
}

// CartLine holds one product's pending quantity. Price and name are
// snapshots taken when the line was created.
type CartLine struct {
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  *string `json:"image_url"`
}

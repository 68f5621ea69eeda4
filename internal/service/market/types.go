package market

import (
	"fmt"

	"storefront-client/internal/model"
)

type RegisterRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// ProductQuery filters and pages the public product listing.
type ProductQuery struct {
	Search string
	Skip   int
	Limit  int
}

type ProductCreate struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	ImageURL    *string `json:"image_url"`
}

// ProductUpdate carries only the fields to change; nil fields are left
// untouched by the service.
type ProductUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty"`
}

type OrderItemCreate struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

// OrderCreate deliberately omits prices: the service is the price authority.
type OrderCreate struct {
	Items []OrderItemCreate `json:"items"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// APIError is a request the service rejected with a non-success status.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market api error (status %d): %s", e.Status, e.Detail)
}

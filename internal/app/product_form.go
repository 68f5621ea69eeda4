package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"storefront-client/internal/service/market"
)

// MaxImageBytes bounds the raw size of an embedded product image.
const MaxImageBytes = 5 << 20

var (
	ErrImageTooLarge = errors.New("image too large, use an image under 5MB")
	ErrNotAnImage    = errors.New("file is not an image")
)

// ProductForm is the client-side shape of the product create/edit form.
// Empty Description and ImageURL are sent as null.
type ProductForm struct {
	Name        string
	Description string
	Price       float64
	Stock       int
	ImageURL    string
}

func (f ProductForm) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("product name is required")
	}
	if f.Price < 0 {
		return errors.New("price cannot be negative")
	}
	if f.Stock < 0 {
		return errors.New("stock cannot be negative")
	}
	if f.ImageURL != "" && !validImageURL(f.ImageURL) {
		return errors.New("image must be an http(s) URL or a data URL")
	}
	return nil
}

func validImageURL(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "data:")
}

func (f ProductForm) createRequest() market.ProductCreate {
	return market.ProductCreate{
		Name:        f.Name,
		Description: optional(f.Description),
		Price:       f.Price,
		Stock:       f.Stock,
		ImageURL:    optional(f.ImageURL),
	}
}

func (f ProductForm) updateRequest() market.ProductUpdate {
	name := f.Name
	price := f.Price
	stock := f.Stock
	return market.ProductUpdate{
		Name:        &name,
		Description: optional(f.Description),
		Price:       &price,
		Stock:       &stock,
		ImageURL:    optional(f.ImageURL),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EncodeImageFile reads an image from disk and embeds it as a data URL,
// rejecting oversized files and files that are not images.
func EncodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}
	mtype := http.DetectContentType(data)
	if !strings.HasPrefix(mtype, "image/") {
		return "", ErrNotAnImage
	}
	return "data:" + mtype + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

package models

type WishlistItem struct {
	UserID    int     `json:"user_id"`
	ProductID int     `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"image_url"`
}

type WishlistRequest struct {
	ProductID int `json:"product_id" binding:"required"`
}

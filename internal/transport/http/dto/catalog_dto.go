package dto

type CourseResponse struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"price_minor"`
	Active     bool   `json:"active"`
}

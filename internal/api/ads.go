package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"kenivoire-client/internal/model"
)

// AdQuery mirrors the listing search filters.
type AdQuery struct {
	Q         string
	Ville     string
	PrixMax   int64
	Categorie string
	Mine      bool
}

func (q AdQuery) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Ville != "" {
		v.Set("ville", q.Ville)
	}
	if q.PrixMax > 0 {
		v.Set("prix_max", strconv.FormatInt(q.PrixMax, 10))
	}
	if q.Categorie != "" {
		v.Set("categorie", q.Categorie)
	}
	if q.Mine {
		v.Set("mine", "true")
	}
	return v
}

func (c *Client) ListAds(ctx context.Context, query AdQuery) ([]model.Ad, error) {
	var ads []model.Ad
	err := c.do(ctx, http.MethodGet, "annonces/", query.values(), nil, &ads)
	return ads, err
}

func (c *Client) GetAd(ctx context.Context, id string) (model.Ad, error) {
	var ad model.Ad
	err := c.do(ctx, http.MethodGet, "annonces/"+id+"/", nil, nil, &ad)
	return ad, err
}

type AdInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Location    string `json:"location"`
	Category    string `json:"category"`
	Image       string `json:"image,omitempty"`
}

func (c *Client) CreateAd(ctx context.Context, input AdInput) (model.Ad, error) {
	var ad model.Ad
	err := c.do(ctx, http.MethodPost, "annonces/", nil, input, &ad)
	return ad, err
}

func (c *Client) UpdateAd(ctx context.Context, id string, patch map[string]any) (model.Ad, error) {
	var ad model.Ad
	err := c.do(ctx, http.MethodPatch, "annonces/"+id+"/", nil, patch, &ad)
	return ad, err
}

func (c *Client) DeleteAd(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "annonces/"+id+"/", nil, nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := c.do(ctx, http.MethodGet, "categories/", nil, nil, &categories)
	return categories, err
}

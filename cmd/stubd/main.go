package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"kenivoire-client/internal/model"
	"kenivoire-client/internal/stubserver"
)

// stubd runs the stub classifieds backend standalone, seeded with a
// couple of demo accounts, for poking at the client by hand.
func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}
	secret := os.Getenv("STUB_SECRET")
	if secret == "" {
		secret = "stub-secret"
	}

	gin.SetMode(gin.ReleaseMode)

	st := stubserver.NewStore()
	seed(st)

	router := stubserver.NewRouter(stubserver.Deps{
		Store:       st,
		TokenConfig: stubserver.DefaultTokenConfig(secret),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("stub backend listening on :%s (users: awa/awa, kouame/kouame)", port)
	log.Fatal(srv.ListenAndServe())
}

func seed(st *stubserver.Store) {
	st.SetCategories([]model.Category{
		{ID: "vehicules", Name: "Véhicules"},
		{ID: "immobilier", Name: "Immobilier"},
		{ID: "electronique", Name: "Électronique"},
	})

	awa, err := st.CreateUser("awa", "awa", "awa@example.ci", "+2250700000001", "Abidjan")
	if err != nil {
		log.Fatal(err)
	}
	if _, err := st.CreateUser("kouame", "kouame", "kouame@example.ci", "+2250700000002", "Bouaké"); err != nil {
		log.Fatal(err)
	}

	st.CreateAd(model.Ad{
		Title:       "Toyota Corolla 2014",
		Description: "Bon état, climatisation, 120 000 km.",
		Price:       4_500_000,
		Location:    "Abidjan",
		Category:    "vehicules",
		SellerID:    awa.ID,
		CreatedAt:   time.Now().UnixMilli(),
	})
}

package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agrigrow/agrichat/cmd/agrichat/internal"
	"github.com/agrigrow/agrichat/pkg/api"
	"github.com/agrigrow/agrichat/pkg/auth"
)

func NewProductsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "products [id]",
		Short: "Browse marketplace listings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return productsCmd(id)
		},
	}
}

func productsCmd(id string) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.APITimeout())
	// Product listings are public, but attach the token when logged in.
	if cred, err := auth.NewStore(cfg.StateDir()).Load(); err == nil {
		client.SetToken(cred.Token)
	} else if !errors.Is(err, auth.ErrNotLoggedIn) {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if id != "" {
		product, err := client.Product(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching product: %w", err)
		}
		fmt.Printf("%s\n  price: %.2f\n", product.Name, product.Price)
		if product.Description != "" {
			fmt.Printf("  %s\n", product.Description)
		}
		return nil
	}

	products, err := client.Products(ctx)
	if err != nil {
		return fmt.Errorf("fetching products: %w", err)
	}
	if len(products) == 0 {
		fmt.Println("No products listed")
		return nil
	}
	for _, p := range products {
		fmt.Printf("%-30s %8.2f  %s\n", p.Name, p.Price, p.ID)
	}
	return nil
}

package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trailpost/shopagent/pkg/agent/productref"
	"github.com/trailpost/shopagent/pkg/agent/tools"
)

// RegisterTools wires the seven shopping tools into the registry. Cart
// writes are marked Mutating; product-surfacing reads are marked
// ReturnsProducts so the loop can enforce the tagging contract.
func RegisterTools(r *tools.Registry, catalog Catalog, cart Cart, searcher Searcher) {
	r.Register(searchProductsTool(searcher))
	r.Register(getProductDetailsTool(catalog))
	r.Register(addToCartTool(catalog, cart))
	r.Register(removeFromCartTool(catalog, cart))
	r.Register(clearCartTool(cart))
	r.Register(getCurrentCartTool(cart))
	r.Register(compareProductsTool(catalog))
}

func searchProductsTool(searcher Searcher) *tools.Tool {
	return &tools.Tool{
		Name: "search_products",
		Description: "Search for products by natural language query. " +
			"Use this when the user asks about products, gear recommendations, or anything shopping-related. " +
			"Supports optional price and category filters. " +
			"Available categories (use exact values): jackets, footwear, sleeping, packs, lighting, hydration, cooking, accessories, safety. " +
			"Only pass category if the user explicitly mentions one.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural language search query",
				},
				"max_price": map[string]any{
					"type":        "number",
					"description": "Optional maximum price filter",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Optional exact category filter",
				},
			},
			"required": []string{"query"},
		},
		ReturnsProducts: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			q := SearchQuery{
				Text:        stringArg(input, "query"),
				Category:    stringArg(input, "category"),
				InStockOnly: true,
			}
			if price, ok := floatArg(input, "max_price"); ok {
				q.MaxPrice = &price
			}

			products, err := searcher.Search(ctx, q)
			if err != nil {
				return "", fmt.Errorf("searching products: %w", err)
			}
			if len(products) == 0 {
				return "No products found matching your search.", nil
			}

			blocks := make([]string, len(products))
			for i, p := range products {
				blocks[i] = FormatProduct(p)
			}
			return strings.Join(blocks, "\n\n"), nil
		},
	}
}

func getProductDetailsTool(catalog Catalog) *tools.Tool {
	return &tools.Tool{
		Name: "get_product_details",
		Description: "Get full details for a specific product by its ID. " +
			"Use this when the user asks for more information about a product they've seen in search results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "integer",
					"description": "The product ID from its [ID:X] tag",
				},
			},
			"required": []string{"product_id"},
		},
		ReturnsProducts: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			id, _ := intArg(input, "product_id")
			p, err := catalog.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return fmt.Sprintf("Product with ID %d not found.", id), nil
			}
			if err != nil {
				return "", fmt.Errorf("fetching product %d: %w", id, err)
			}
			return FormatProduct(p), nil
		},
	}
}

func addToCartTool(catalog Catalog, cart Cart) *tools.Tool {
	return &tools.Tool{
		Name: "add_to_cart",
		Description: "Add a product to the user's shopping cart. " +
			"Use this when the user says they want to buy, add, or get a product. " +
			"If the user refers to a product from a previous comparison (e.g. \"add the cheaper one\"), " +
			"look up the [ID:X] tags and prices in your earlier messages to resolve the correct product_id.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "integer",
					"description": "The product ID to add",
				},
				"quantity": map[string]any{
					"type":        "integer",
					"description": "How many to add (default 1)",
				},
			},
			"required": []string{"product_id"},
		},
		Mutating: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			id, _ := intArg(input, "product_id")
			quantity, ok := intArg(input, "quantity")
			if !ok || quantity <= 0 {
				quantity = 1
			}

			p, err := catalog.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				return fmt.Sprintf("Product with ID %d not found.", id), nil
			}
			if err != nil {
				return "", fmt.Errorf("fetching product %d: %w", id, err)
			}

			if err := cart.Add(ctx, scope.UserID, id, int(quantity)); err != nil {
				return "", fmt.Errorf("adding to cart: %w", err)
			}
			return fmt.Sprintf("Added %dx %s to your cart.", quantity, productref.Encode(p.Ref())), nil
		},
	}
}

func removeFromCartTool(catalog Catalog, cart Cart) *tools.Tool {
	return &tools.Tool{
		Name: "remove_from_cart",
		Description: "Remove a product from the user's cart. " +
			"Use this when the user wants to remove or delete an item from their cart.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_id": map[string]any{
					"type":        "integer",
					"description": "The product ID to remove",
				},
			},
			"required": []string{"product_id"},
		},
		Mutating: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			id, _ := intArg(input, "product_id")

			removed, err := cart.Remove(ctx, scope.UserID, id)
			if err != nil {
				return "", fmt.Errorf("removing from cart: %w", err)
			}
			if !removed {
				return "That product is not in your cart.", nil
			}

			if p, err := catalog.Get(ctx, id); err == nil {
				return fmt.Sprintf("Removed %s from your cart.", productref.Encode(p.Ref())), nil
			}
			return "Removed the item from your cart.", nil
		},
	}
}

func clearCartTool(cart Cart) *tools.Tool {
	return &tools.Tool{
		Name: "clear_cart",
		Description: "Remove ALL items from the user's cart at once. " +
			"Use this when the user wants to empty, clear, or reset their entire cart. " +
			"Do NOT use this to remove a single item; use remove_from_cart instead.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Mutating: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			n, err := cart.Clear(ctx, scope.UserID)
			if err != nil {
				return "", fmt.Errorf("clearing cart: %w", err)
			}
			if n == 0 {
				return "Your cart is already empty.", nil
			}
			return fmt.Sprintf("Done! Removed all %d item(s) from your cart.", n), nil
		},
	}
}

func getCurrentCartTool(cart Cart) *tools.Tool {
	return &tools.Tool{
		Name: "get_current_cart",
		Description: "Get the current contents of the user's shopping cart. " +
			"Use this when the user asks what's in their cart, the total, or wants to review. " +
			"Always call this before removing items so you operate on what is actually there.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			items, err := cart.Items(ctx, scope.UserID)
			if err != nil {
				return "", fmt.Errorf("loading cart: %w", err)
			}
			if len(items) == 0 {
				return "Your cart is empty.", nil
			}

			var b strings.Builder
			total := 0.0
			for _, line := range items {
				subtotal := line.Subtotal()
				total += subtotal
				fmt.Fprintf(&b, "• [ID:%d] %s x%d — $%.2f\n", line.Product.ID, line.Product.Name, line.Quantity, subtotal)
			}
			fmt.Fprintf(&b, "\nTotal: $%.2f", total)
			return b.String(), nil
		},
	}
}

func compareProductsTool(catalog Catalog) *tools.Tool {
	return &tools.Tool{
		Name: "compare_products",
		Description: "Compare multiple products side by side. " +
			"Use this when the user wants to compare two or more products. Takes a list of product IDs.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"product_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"description": "The product IDs to compare",
				},
			},
			"required": []string{"product_ids"},
		},
		ReturnsProducts: true,
		Handler: func(ctx context.Context, scope tools.Scope, input map[string]any) (string, error) {
			ids := intSliceArg(input, "product_ids")

			products, err := catalog.ByIDs(ctx, ids)
			if err != nil {
				return "", fmt.Errorf("fetching products: %w", err)
			}
			if len(products) < 2 {
				return "Need at least 2 valid product IDs to compare.", nil
			}

			blocks := make([]string, len(products))
			for i, p := range products {
				blocks[i] = FormatProduct(p)
			}
			return strings.Join(blocks, "\n\n--- vs ---\n\n"), nil
		},
	}
}

// Argument helpers. JSON decoding hands numbers over as float64; Go-side
// callers may pass native ints.

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func floatArg(input map[string]any, key string) (float64, bool) {
	switch v := input[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intArg(input map[string]any, key string) (int64, bool) {
	switch v := input[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func intSliceArg(input map[string]any, key string) []int64 {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			ids = append(ids, int64(n))
		case int:
			ids = append(ids, int64(n))
		case int64:
			ids = append(ids, n)
		}
	}
	return ids
}

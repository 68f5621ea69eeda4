package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"storefront-client/internal/app"
	"storefront-client/internal/config"
	"storefront-client/internal/model"
	"storefront-client/internal/notify"
	"storefront-client/internal/service/market"
	"storefront-client/internal/session"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup wiring
	notifier := &notify.Console{W: os.Stdout}
	client := market.NewClient(market.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.HTTPTimeout,
	}, notifier)
	store := session.NewTokenStore(cfg.TokenFile)
	a := app.New(client, store, notifier)

	// 3. Restore session and load the catalog
	ctx := context.Background()
	if err := a.Init(ctx); err != nil {
		log.Printf("Initial load failed: %v", err)
	}
	if user := a.User(); user != nil {
		fmt.Printf("Welcome back, %s (%s)\n", user.Email, user.Role)
	}

	// 4. Command loop
	fmt.Println(`Type "help" for commands.`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		run(ctx, a, fields[0], fields[1:])
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) {
	switch cmd {
	case "help":
		printHelp()

	case "login":
		if len(args) != 2 {
			fmt.Println("usage: login <email> <password>")
			return
		}
		_, _ = a.Login(ctx, args[0], args[1])

	case "register":
		if len(args) != 3 {
			fmt.Println("usage: register <email> <password> <buyer|seller>")
			return
		}
		_, _ = a.Register(ctx, args[0], args[1], model.Role(args[2]))

	case "logout":
		a.Logout()

	case "whoami":
		user := a.User()
		if user == nil {
			fmt.Println("anonymous")
			return
		}
		fmt.Printf("%s (%s)\n", user.Email, user.Role)

	case "products":
		if err := a.Search(ctx, ""); err != nil {
			return
		}
		printProducts(a.Products())

	case "search":
		if err := a.Search(ctx, strings.Join(args, " ")); err != nil {
			return
		}
		printProducts(a.Products())

	case "add":
		id, ok := parseID(args)
		if !ok {
			fmt.Println("usage: add <product-id>")
			return
		}
		_ = a.AddToCart(id)

	case "cart":
		lines := a.CartLines()
		if len(lines) == 0 {
			fmt.Println("Your cart is empty")
			return
		}
		for _, line := range lines {
			fmt.Printf("  #%d %s x%d @ %.2f\n", line.ProductID, line.Name, line.Quantity, line.Price)
		}
		totals := a.CartTotals()
		fmt.Printf("  %d item(s), total %.2f\n", totals.Items, totals.Amount)

	case "more":
		if id, ok := parseID(args); ok {
			_ = a.AdjustCartQuantity(id, 1)
		}

	case "less":
		if id, ok := parseID(args); ok {
			_ = a.AdjustCartQuantity(id, -1)
		}

	case "rm":
		if id, ok := parseID(args); ok {
			_ = a.RemoveFromCart(id)
		}

	case "checkout":
		order, err := a.Checkout(ctx)
		if err == nil {
			fmt.Printf("Order #%d placed, total %.2f\n", order.ID, order.TotalAmount)
		}

	case "orders":
		list, err := a.Orders(ctx)
		if err != nil {
			return
		}
		for _, o := range list {
			fmt.Printf("Order #%d [%s] total %.2f (%s)\n", o.ID, o.Status, o.TotalAmount, o.CreatedAt.Format("2006-01-02 15:04"))
			for _, item := range o.Items {
				fmt.Printf("  product %d x%d @ %.2f\n", item.ProductID, item.Quantity, item.Price)
			}
		}

	case "dashboard":
		dash, err := a.RefreshSellerDashboard(ctx)
		if err != nil {
			return
		}
		fmt.Println("Your products:")
		printProducts(dash.Products)
		fmt.Println("Your orders:")
		for _, o := range dash.Orders {
			fmt.Printf("Order #%d [%s] buyer %s subtotal %.2f\n", o.OrderID, o.Status, o.BuyerEmail, o.Subtotal)
			for _, line := range o.Lines {
				fmt.Printf("  %s x%d @ %.2f\n", line.ProductName, line.Quantity, line.Price)
			}
		}

	case "product-create":
		form, ok := parseProductForm(args)
		if !ok {
			fmt.Println(`usage: product-create <name> <price> <stock> [description] [image-file]`)
			return
		}
		_, _ = a.SaveProduct(ctx, 0, form)

	case "product-update":
		if len(args) < 1 {
			fmt.Println(`usage: product-update <id> <name> <price> <stock> [description] [image-file]`)
			return
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("invalid product id")
			return
		}
		form, ok := parseProductForm(args[1:])
		if !ok {
			fmt.Println(`usage: product-update <id> <name> <price> <stock> [description] [image-file]`)
			return
		}
		_, _ = a.SaveProduct(ctx, id, form)

	case "product-delete":
		if id, ok := parseID(args); ok {
			_ = a.DeleteProduct(ctx, id)
		}

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
}

func parseID(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseProductForm(args []string) (app.ProductForm, bool) {
	if len(args) < 3 {
		return app.ProductForm{}, false
	}
	price, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return app.ProductForm{}, false
	}
	stock, err := strconv.Atoi(args[2])
	if err != nil {
		return app.ProductForm{}, false
	}

	form := app.ProductForm{Name: args[0], Price: price, Stock: stock}
	if len(args) > 3 {
		form.Description = args[3]
	}
	if len(args) > 4 {
		encoded, err := app.EncodeImageFile(args[4])
		if err != nil {
			fmt.Printf("image not attached: %v\n", err)
			return app.ProductForm{}, false
		}
		form.ImageURL = encoded
	}
	return form, true
}

func printProducts(products []model.Product) {
	if len(products) == 0 {
		fmt.Println("No products found")
		return
	}
	for _, p := range products {
		desc := ""
		if p.Description != nil {
			desc = " - " + *p.Description
		}
		fmt.Printf("  #%d %s%s | %.2f | %d in stock\n", p.ID, p.Name, desc, p.Price, p.Stock)
	}
}

func printHelp() {
	fmt.Println(`Commands:
  login <email> <password>
  register <email> <password> <buyer|seller>
  logout | whoami
  products | search <term>
  add <id> | more <id> | less <id> | rm <id> | cart | checkout
  orders
  dashboard
  product-create <name> <price> <stock> [description] [image-file]
  product-update <id> <name> <price> <stock> [description] [image-file]
  product-delete <id>
  quit`)
}

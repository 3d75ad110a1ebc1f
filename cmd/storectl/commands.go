package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatcommerce/internal/catalog"
	"chatcommerce/internal/domain"
)

func discountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discount",
		Short: "Show, set or clear the store-wide discount",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active discount percentage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			pct, err := svc.discounts.Get(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g%%\n", pct)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [percentage]",
		Short: "Set the discount (0-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
			if err != nil {
				return fmt.Errorf("invalid percentage %q", args[0])
			}
			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			if err := svc.discounts.Set(cmd.Context(), pct); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "discount set to %g%%\n", pct)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the discount",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			if err := svc.discounts.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "discount cleared")
			return nil
		},
	})

	return cmd
}

func orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Inspect orders and move them through fulfillment",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [order-id]",
		Short: "Print an order as JSON, looking in the archive when it is no longer active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			o, err := svc.orders.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(o)
		},
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List active orders, optionally for one branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			branch, _ := cmd.Flags().GetString("branch")
			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			orders, err := svc.orders.List(cmd.Context(), branch)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "no active orders")
				return nil
			}
			for _, o := range orders {
				fmt.Fprintf(out, "%s  %-10s  %-11s  %10s  %s\n", o.ID, o.Branch, o.Status, domain.FormatAmount(o.Total), o.UserID)
			}
			return nil
		},
	}
	list.Flags().StringP("branch", "b", "", "Only orders routed to this branch")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:     "status [command]",
		Short:   `Apply a status command such as "delivered ORD20250808E8BF12AB34CD"`,
		Args:    cobra.MinimumNArgs(1),
		Example: "storectl order status ready ORD20250808E8BF12AB34CD",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.close()

			o, err := svc.orders.UpdateOrderStatusFromCommand(cmd.Context(), strings.Join(args, " "))
			if o == nil {
				return err
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s is now %s\n", o.ID, o.Status)
			return nil
		},
	})

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate brand reference data",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Parse a brand file and optional product CSV and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			csvPath, _ := cmd.Flags().GetString("csv")

			directory, err := catalog.Load(file)
			if err != nil {
				return err
			}
			if csvPath != "" {
				f, err := os.Open(csvPath)
				if err != nil {
					return err
				}
				defer f.Close()
				products, err := catalog.ImportProductsCSV(f)
				if err != nil {
					return fmt.Errorf("import %s: %w", csvPath, err)
				}
				directory.AddProducts(products...)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "brand:    %s\n", directory.Name)
			fmt.Fprintf(out, "radius:   %.1f km\n", directory.DeliveryRadiusKm)
			fmt.Fprintf(out, "branches: %d\n", len(directory.Branches()))
			for _, b := range directory.Branches() {
				fmt.Fprintf(out, "  - %s (%.4f, %.4f) contacts=%s\n", b.Name, b.Location.Latitude, b.Location.Longitude, strings.Join(b.Contacts, ","))
			}
			fmt.Fprintf(out, "products: %d\n", len(directory.Products()))
			return nil
		},
	}
	check.Flags().StringP("file", "f", "configs/brand.yaml", "Brand YAML file")
	check.Flags().String("csv", "", "Optional product CSV export to merge")
	cmd.AddCommand(check)

	return cmd
}

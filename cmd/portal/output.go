package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/go-supplier-portal/cart"
	apperrors "github.com/jrsteele09/go-supplier-portal/internal/errors"
	"github.com/jrsteele09/go-supplier-portal/internal/utils"
	"github.com/jrsteele09/go-supplier-portal/needs"
	"github.com/jrsteele09/go-supplier-portal/session"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// encode writes v as JSON or YAML. It reports false for the table format.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch strings.ToLower(format) {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case formatTable, "":
		return false, nil
	default:
		return true, apperrors.Wrapf(apperrors.ErrInvalidRequest, "unknown output format %q", format)
	}
}

func printIdentity(w io.Writer, format string, identity *session.Identity) error {
	if done, err := encode(w, format, identity); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", identity.DisplayName())
	if identity.Email != "" {
		fmt.Fprintf(tw, "Email:\t%s\n", identity.Email)
	}
	if identity.INN != "" {
		fmt.Fprintf(tw, "INN:\t%s\n", identity.INN)
	}
	if len(identity.Roles) > 0 {
		fmt.Fprintf(tw, "Roles:\t%s\n", strings.Join(identity.Roles, ", "))
	}
	if identity.ExpiresAt != nil {
		fmt.Fprintf(tw, "Expires:\t%s\n", identity.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// printNeeds marks needs already in the cart with an asterisk. A request id listed twice
// is shown once.
func printNeeds(w io.Writer, format string, list []needs.Need, selection *cart.Cart) error {
	catalog := needs.NewCatalog(list)
	if done, err := encode(w, format, catalog.List()); done {
		return err
	}
	if catalog.Len() == 0 {
		_, err := fmt.Fprintln(w, "No open needs")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, " \tREQUEST ID\tTITLE\tQUANTITY\tCATEGORY\tDELIVERY")
	for _, n := range catalog.List() {
		mark := " "
		if selection.Contains(n.RequestID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, n.RequestID, n.Title, n.Quantity(),
			utils.ValueOr(n.Category, "-"), utils.ValueOr(n.DeliveryPeriod, "-"))
	}
	return tw.Flush()
}

// printRows shows the cart. When resolved is false the rows were not matched against the
// published needs and carry request ids only.
func printRows(w io.Writer, format string, rows []cart.Row, resolved bool) error {
	if done, err := encode(w, format, rows); done {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "Cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUEST ID\tTITLE\tQUANTITY")
	for _, row := range rows {
		title, quantity := "(no longer published)", "-"
		switch {
		case !resolved:
			title = "(details unavailable)"
		case row.Need != nil:
			title, quantity = row.Need.Title, row.Need.Quantity()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.RequestID, title, quantity)
	}
	return tw.Flush()
}

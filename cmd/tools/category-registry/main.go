// cmd/tools/category-registry/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"bookverse-notifications/internal/models"
	"bookverse-notifications/pkg/registry"
)

const defaultPath = "configs/category-registry.json"

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)

	listPath := listCmd.String("path", defaultPath, "Path to registry file")
	listGroup := listCmd.String("group", "", "Only list categories in this group")

	validatePath := validateCmd.String("path", defaultPath, "Path to registry file")

	exportPath := exportCmd.String("path", defaultPath, "Where to write the built-in registry")
	exportForce := exportCmd.Bool("force", false, "Overwrite an existing file")

	updatePath := updateCmd.String("path", defaultPath, "Path to registry file")
	idUpdate := updateCmd.String("id", "", "Category ID to update (e.g., newFollower)")
	field := updateCmd.String("field", "", "Field to update (displayName, description, group, channel, templateId)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*listPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		list(reg, *listGroup)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		if err := reg.Validate(knownCategories()); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed (%d categories).\n", len(reg.Categories))

	case "export":
		exportCmd.Parse(os.Args[2:])
		if _, err := os.Stat(*exportPath); err == nil && !*exportForce {
			fmt.Printf("Error: %s exists, use -force to overwrite\n", *exportPath)
			os.Exit(1)
		}
		reg := registry.Builtin()
		reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
		if err := registry.SaveRegistry(reg, *exportPath); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d categories to %s\n", len(reg.Categories), *exportPath)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateCategory(*updatePath, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating category: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated category %s, field %s to %s\n", *idUpdate, *field, *value)

	case "help":
		fallthrough
	default:
		help()
	}
}

func knownCategories() []string {
	ids := make([]string, len(models.AllCategories))
	for i, c := range models.AllCategories {
		ids[i] = string(c)
	}
	return ids
}

func list(reg *registry.CategoryRegistry, group string) {
	cats := make([]registry.CategoryInfo, 0, len(reg.Categories))
	for _, c := range reg.Categories {
		if group == "" || c.Group == group {
			cats = append(cats, c)
		}
	}
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Group < cats[j].Group })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGROUP\tCHANNEL\tIMPORTANCE\tTEMPLATE")
	for _, c := range cats {
		tmpl := c.TemplateID
		if tmpl == "" {
			tmpl = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Group, c.Channel, c.Importance, tmpl)
	}
	w.Flush()
	fmt.Printf("\n%d categories (registry version %s)\n", len(cats), reg.Version)
}

func updateCategory(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Categories {
		if reg.Categories[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "displayName":
			reg.Categories[i].DisplayName = value
		case "description":
			reg.Categories[i].Description = value
		case "group":
			reg.Categories[i].Group = value
		case "channel":
			reg.Categories[i].Channel = value
			reg.Categories[i].Importance = registry.ImportanceOf(value)
		case "templateId":
			reg.Categories[i].TemplateID = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}
	if !found {
		return fmt.Errorf("category with ID %s not found", id)
	}

	if err := reg.Validate(knownCategories()); err != nil {
		return fmt.Errorf("update leaves registry invalid: %w", err)
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return registry.SaveRegistry(reg, path)
}

func help() {
	fmt.Println(strings.TrimSpace(`
Usage: category-registry <command> [arguments]

Commands:
  list      Print the categories in a registry file
  validate  Check a registry file covers every known category
  export    Write the built-in registry to a file
  update    Change one field of a category
  help      Show this help message

Examples:
  category-registry list -group social
  category-registry validate -path configs/category-registry.json
  category-registry export -force
  category-registry update -id newFollower -field templateId -value new-follower`))
}

package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Database loads the ingredient and base mix catalogs from their JSON files
// and renders them as agent context. Files are read once and cached for the
// life of the process.
type Database struct {
	ingredientsPath string
	baseMixesPath   string

	ingredientsOnce sync.Once
	ingredientsText string
	ingredientsErr  error

	baseMixesOnce sync.Once
	baseMixesText string
	baseMixesErr  error
}

// NewDatabase creates a catalog database reading from the given files.
func NewDatabase(ingredientsPath, baseMixesPath string) *Database {
	return &Database{
		ingredientsPath: ingredientsPath,
		baseMixesPath:   baseMixesPath,
	}
}

// ingredient mirrors the fields of Ingredients3.json. Older exports use
// all-lowercase keys, so lookups fall back.
type ingredient struct {
	ID       json.Number `json:"ingredientId"`
	Name     string      `json:"name"`
	MinRange json.Number `json:"minimumRange"`
	RecRange json.Number `json:"reccomendedRange"`
	MaxRange json.Number `json:"customerMaxRange"`
	Unit     string      `json:"unitOfMeasureName"`
	Cost     json.Number `json:"pricePer30Servings"`
	Overview string      `json:"overview"`
}

// IngredientsContext returns the formatted ingredient database for
// inclusion in an agent's instructions.
func (d *Database) IngredientsContext() (string, error) {
	d.ingredientsOnce.Do(func() {
		d.ingredientsText, d.ingredientsErr = d.formatIngredients()
	})
	return d.ingredientsText, d.ingredientsErr
}

func (d *Database) formatIngredients() (string, error) {
	data, err := os.ReadFile(d.ingredientsPath)
	if err != nil {
		return "", fmt.Errorf("read ingredients database: %w", err)
	}

	var ingredients []ingredient
	if err := json.Unmarshal(data, &ingredients); err != nil {
		return "", fmt.Errorf("parse ingredients database: %w", err)
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(&b, "%s\nINGREDIENTS DATABASE (%d Available Ingredients)\n%s\n\n", rule, len(ingredients), rule)

	for _, ing := range ingredients {
		fmt.Fprintf(&b, "• %s (ID: %s)\n", ing.Name, ing.ID)
		fmt.Fprintf(&b, "  Dosage Range: %s - %s %s (Max: %s %s)\n",
			ing.MinRange, ing.RecRange, ing.Unit, ing.MaxRange, ing.Unit)
		fmt.Fprintf(&b, "  Cost: R%s per 30 servings\n", ing.Cost)
		if ing.Overview != "" {
			fmt.Fprintf(&b, "  Notes: %s\n", ing.Overview)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// baseMixEntry mirrors the fields of BaseAddMixes2.json.
type baseMixEntry struct {
	BaseMixID   json.Number   `json:"baseMixId"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	AddMixes    []addMixEntry `json:"addMixes"`
}

type addMixEntry struct {
	AddMixID json.Number `json:"addMixId"`
	Type     string      `json:"addMixType"`
	Name     string      `json:"name"`
}

// BaseMixesContext returns the formatted base mix database for inclusion in
// an agent's instructions.
func (d *Database) BaseMixesContext() (string, error) {
	d.baseMixesOnce.Do(func() {
		d.baseMixesText, d.baseMixesErr = d.formatBaseMixes()
	})
	return d.baseMixesText, d.baseMixesErr
}

func (d *Database) formatBaseMixes() (string, error) {
	data, err := os.ReadFile(d.baseMixesPath)
	if err != nil {
		return "", fmt.Errorf("read base mixes database: %w", err)
	}

	var mixes []baseMixEntry
	if err := json.Unmarshal(data, &mixes); err != nil {
		return "", fmt.Errorf("parse base mixes database: %w", err)
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(&b, "%s\nBASE MIXES DATABASE (%d Base Mixes)\n%s\n\n", rule, len(mixes), rule)

	for _, mix := range mixes {
		fmt.Fprintf(&b, "• %s (Base Mix ID: %s)\n", mix.Name, mix.BaseMixID)
		if mix.Description != "" {
			fmt.Fprintf(&b, "  %s\n", mix.Description)
		}
		if len(mix.AddMixes) > 0 {
			b.WriteString("  Customization options:\n")
			for _, am := range mix.AddMixes {
				fmt.Fprintf(&b, "    - [%s] %s (ID: %s)\n", am.Type, am.Name, am.AddMixID)
			}
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cookbookhq/backend/internal/infrastructure/filestore"
)

var slugCmd = &cobra.Command{
	Use:   "slug <title>...",
	Short: "Show the artifact filename slug for recipe titles",
	Long: `Show the filename slug derived from a recipe title, exactly as the
server derives artifact filenames.

Examples:
  cookctl slug "Crème Brûlée"
  cookctl slug "Best Chocolate Chip Cookies" "Pasta alla Norma"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, title := range args {
			fmt.Printf("%s.yaml\n", filestore.Slugify(title))
		}
	},
}

// package formatter renders favorites and users for the command line: CSV, Markdown, plain text and JSON exports
// plus the terminal palette used for status output.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playr/internal/models"
	"github.com/desertthunder/playr/internal/shared"
)

// Formats accepted by [Export].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatJSON     = "json"
)

// FavoritesExport is one user's favorites of a single item type.
type FavoritesExport struct {
	Owner     *models.User
	ItemType  string
	Favorites []*models.Favorite
}

type favoriteRow struct {
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name,omitempty"`
	ItemArtist string    `json:"item_artist,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// ExportToCSV converts a FavoritesExport to CSV format with columns: ID, Name, Artist, Added
func ExportToCSV(export *FavoritesExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, fav := range export.Favorites {
		record := []string{
			fav.ItemID(),
			fav.ItemName(),
			fav.ItemArtist(),
			fav.CreatedAt().UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a FavoritesExport to a Markdown document with the owner's profile image, if any
func ExportToMarkdown(export *FavoritesExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s favorites of %s\n\n", title(export.ItemType), ownerName(export.Owner)))

	if export.Owner != nil && export.Owner.ProfileImage() != "" {
		buf.WriteString(fmt.Sprintf("![Profile](%s)\n\n", export.Owner.ProfileImage()))
	}

	buf.WriteString(fmt.Sprintf("**Items**: %d\n\n", len(export.Favorites)))

	buf.WriteString("## Items\n\n")
	for i, fav := range export.Favorites {
		name := fav.ItemName()
		if name == "" {
			name = fav.ItemID()
		}
		artistPart := ""
		if fav.ItemArtist() != "" {
			artistPart = fmt.Sprintf(" - %s", fav.ItemArtist())
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s (`%s`)\n", i+1, name, artistPart, fav.ItemID()))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a FavoritesExport to plain text format
func ExportToText(export *FavoritesExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %s\n", ownerName(export.Owner)))
	buf.WriteString(fmt.Sprintf("Type: %s\n", export.ItemType))
	buf.WriteString(fmt.Sprintf("Items: %d\n\n", len(export.Favorites)))

	for i, fav := range export.Favorites {
		if fav.ItemArtist() != "" {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, fav.ItemArtist(), orID(fav)))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, orID(fav)))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the favorites as an indented JSON array
func ExportToJSON(export *FavoritesExport) ([]byte, error) {
	rows := make([]favoriteRow, len(export.Favorites))
	for i, fav := range export.Favorites {
		rows[i] = favoriteRow{
			ItemID:     fav.ItemID(),
			ItemName:   fav.ItemName(),
			ItemArtist: fav.ItemArtist(),
			AddedAt:    fav.CreatedAt().UTC(),
		}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders export in the named format.
func Export(export *FavoritesExport, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown, "md":
		return ExportToMarkdown(export)
	case FormatText, "txt":
		return ExportToText(export)
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// DefaultFilename is {spotifyID}_{itemType}_favorites with the format's extension.
func DefaultFilename(export *FavoritesExport, format string) string {
	owner := "unknown"
	if export.Owner != nil {
		owner = export.Owner.SpotifyID()
	}

	ext := strings.ToLower(format)
	switch ext {
	case FormatMarkdown:
		ext = "md"
	case FormatText:
		ext = "txt"
	}
	return fmt.Sprintf("%s_%s_favorites.%s", owner, export.ItemType, ext)
}

// WriteExport renders export and writes it to path, defaulting to [DefaultFilename].
func WriteExport(export *FavoritesExport, format, path string) (string, error) {
	data, err := Export(export, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = DefaultFilename(export, format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// UsersTable renders users as aligned plain-text columns: ID, Spotify ID, Name, Email, Created.
func UsersTable(users []*models.User) []byte {
	rows := [][]string{{"ID", "SPOTIFY ID", "NAME", "EMAIL", "CREATED"}}
	for _, u := range users {
		rows = append(rows, []string{
			strconv.FormatInt(u.ID(), 10),
			u.SpotifyID(),
			u.DisplayName(),
			u.Email(),
			u.CreatedAt().UTC().Format("2006-01-02 15:04"),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var buf bytes.Buffer
	for _, row := range rows {
		for i, cell := range row {
			if i == len(row)-1 {
				buf.WriteString(cell)
				break
			}
			buf.WriteString(cell)
			buf.WriteString(strings.Repeat(" ", widths[i]-len(cell)+2))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func ownerName(u *models.User) string {
	switch {
	case u == nil:
		return "unknown user"
	case u.DisplayName() != "":
		return u.DisplayName()
	default:
		return u.SpotifyID()
	}
}

func orID(fav *models.Favorite) string {
	if fav.ItemName() != "" {
		return fav.ItemName()
	}
	return fav.ItemID()
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

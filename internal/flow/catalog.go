package flow

import (
	"fmt"
	"strings"

	"github.com/m3rciful/vpnshop/internal/ledger"
)

// Item is a selectable catalog entry.
type Item struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// AppLink is a client download link.
type AppLink struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

// GuideImage is one picture of the connection guide. Source is a local path
// or an URL.
type GuideImage struct {
	Source  string `yaml:"source"`
	Caption string `yaml:"caption"`
}

// Guide is the step-by-step connection guide sent as a media group.
type Guide struct {
	Label  string       `yaml:"label"`
	Images []GuideImage `yaml:"images"`
	Note   string       `yaml:"note"`
}

// Catalog is the configurable storefront content.
type Catalog struct {
	About    string    `yaml:"about"`
	Currency string    `yaml:"currency"`
	Accounts []Item    `yaml:"accounts"`
	Apps     []AppLink `yaml:"apps"`
	Guide    Guide     `yaml:"guide"`
	Services []Item    `yaml:"services"`
}

const guideID = "guide"

// DefaultCatalog returns the built-in storefront content.
func DefaultCatalog() Catalog {
	captions := []string{
		"1. Install OpenVPN from your app store, confirm and open the app.",
		"2. Open the File tab.",
		"3. Tap Browse.",
		"4. Go to the folder where you saved the file you received.",
		"5. Select the file and import it.",
		"6. Tap OK.",
		"7. Enter the username and password you received.",
		"8. Confirm the connection request.",
		"9. If it does not connect, tap the toggle next to the profile and wait.",
		"10. Once connected the status turns green. Tap the toggle again to disconnect.\nIf something goes wrong, close and reopen the app, then contact support.",
	}
	images := make([]GuideImage, 0, len(captions))
	for i, c := range captions {
		images = append(images, GuideImage{
			Source:  fmt.Sprintf("assets/guide/photo%d.jpg", i+1),
			Caption: c,
		})
	}
	return Catalog{
		About:    "We started out to give everyone full, unrestricted access to the open internet.",
		Currency: "toman",
		Accounts: []Item{
			{ID: "1_month", Label: "1 month"},
			{ID: "3_month", Label: "3 months"},
			{ID: "special", Label: "Special"},
			{ID: "access_point", Label: "Access point"},
		},
		Apps: []AppLink{
			{ID: "android", Label: "Android", URL: "https://play.google.com/store/apps/details?id=net.openvpn.openvpn"},
			{ID: "iphone", Label: "iPhone", URL: "https://apps.apple.com/app/openvpn-connect/id590379981"},
			{ID: "windows", Label: "Windows", URL: "https://openvpn.net/client-connect-vpn-for-windows/"},
		},
		Guide: Guide{
			Label:  "Connection guide",
			Images: images,
			Note: "Note: on iPhone (iOS) and some older Android devices open the file first, " +
				"tap Share and pick the app to import it, then follow the remaining steps.\n" +
				"Contact support if you run into problems.",
		},
		Services: []Item{
			{ID: string(ledger.ServiceOpenVPN), Label: "OpenVPN"},
			{ID: string(ledger.ServiceV2Ray), Label: "V2Ray"},
			{ID: string(ledger.ServiceProxy), Label: "Proxy"},
		},
	}
}

// Normalize fills empty sections with defaults and canonicalizes ids.
func (c *Catalog) Normalize() {
	def := DefaultCatalog()
	c.About = strings.TrimSpace(c.About)
	if c.About == "" {
		c.About = def.About
	}
	c.Currency = strings.TrimSpace(c.Currency)
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	if len(c.Accounts) == 0 {
		c.Accounts = def.Accounts
	}
	if len(c.Apps) == 0 {
		c.Apps = def.Apps
	}
	if c.Guide.Label == "" && len(c.Guide.Images) == 0 && c.Guide.Note == "" {
		c.Guide = def.Guide
	}
	if c.Guide.Label == "" {
		c.Guide.Label = def.Guide.Label
	}
	if len(c.Services) == 0 {
		c.Services = def.Services
	}
	for i := range c.Services {
		c.Services[i].ID = string(ledger.NormalizeKind(c.Services[i].ID))
		if c.Services[i].Label == "" {
			c.Services[i].Label = c.Services[i].ID
		}
	}
	for i := range c.Accounts {
		if c.Accounts[i].Label == "" {
			c.Accounts[i].Label = c.Accounts[i].ID
		}
	}
}

// Account returns the account type with the given id.
func (c *Catalog) Account(id string) (Item, bool) {
	return findItem(c.Accounts, id)
}

// Service returns the service kind with the given id.
func (c *Catalog) Service(id string) (Item, bool) {
	return findItem(c.Services, string(ledger.NormalizeKind(id)))
}

// App returns the download link with the given id.
func (c *Catalog) App(id string) (AppLink, bool) {
	for _, a := range c.Apps {
		if a.ID == id {
			return a, true
		}
	}
	return AppLink{}, false
}

// GuideMedia returns the guide images as media items.
func (c *Catalog) GuideMedia() []MediaItem {
	items := make([]MediaItem, 0, len(c.Guide.Images))
	for _, img := range c.Guide.Images {
		items = append(items, MediaItem{Source: img.Source, Caption: img.Caption})
	}
	return items
}

func findItem(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

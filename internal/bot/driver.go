// internal/bot/driver.go
package bot

import (
	"context"
	"time"

	"github.com/xkilldash9x/inmate-bot/internal/locator"
)

// Driver is the browser surface the bot drives. *session.Session implements it.
// Element operations on a handle that no longer matches return locator.ErrNotFound,
// as do select operations whose option does not exist.
type Driver interface {
	locator.Page

	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (url, title string, err error)
	HTML(ctx context.Context) (string, error)
	Alive(ctx context.Context) bool

	Click(ctx context.Context, el locator.Element) error
	Fill(ctx context.Context, el locator.Element, value string) error
	TypeText(ctx context.Context, el locator.Element, text string, delay time.Duration) error
	Press(ctx context.Context, el locator.Element, key string) error

	InputValue(ctx context.Context, el locator.Element) (string, error)
	IsChecked(ctx context.Context, el locator.Element) (bool, error)
	Check(ctx context.Context, el locator.Element) error
	ForceCheck(ctx context.Context, el locator.Element) (bool, error)
	IsEnabled(ctx context.Context, el locator.Element) (bool, error)
	TagName(ctx context.Context, el locator.Element) (string, error)
	Attribute(ctx context.Context, el locator.Element, name string) (string, error)

	SelectByLabel(ctx context.Context, el locator.Element, label string) error
	SelectByValue(ctx context.Context, el locator.Element, value string) error
}

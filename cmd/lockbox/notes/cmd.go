package notes

import (
	"encoding/json"
	"time"

	"github.com/andrebq/lockbox/internal/app"
	"github.com/andrebq/lockbox/internal/config"
	"github.com/urfave/cli/v2"
)

type exported struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func Cmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "Inspect stored secrets",
		Subcommands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write every stored secret to stdout as JSON lines",
				Action: func(c *cli.Context) error {
					a, err := app.New(c.Context, *cfg, nil)
					if err != nil {
						return err
					}
					defer a.Close()
					notes, err := a.Store.ListNotes(c.Context)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(c.App.Writer)
					for _, n := range notes {
						if err := enc.Encode(exported{ID: n.ID, Content: n.Content, CreatedAt: n.CreatedAt}); err != nil {
							return err
						}
					}
					return nil
				},
			},
		},
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lead-intake-workers/internal/common/config"
	"lead-intake-workers/internal/common/database"
	"lead-intake-workers/internal/common/logger"
	"lead-intake-workers/internal/models"
	"lead-intake-workers/internal/repository/cache"
	"lead-intake-workers/internal/repository/postgres"
	"lead-intake-workers/pkg/catalog"
)

const defaultCatalogPath = "configs/followup-templates.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)

	addPath := addCmd.String("path", defaultCatalogPath, "Path to catalog file")
	id := addCmd.String("id", "", "Template ID (e.g., welcome-email)")
	name := addCmd.String("name", "", "Display name")
	channel := addCmd.String("channel", "email", "Channel (email, sms)")
	subject := addCmd.String("subject", "", "Subject, required for email")
	content := addCmd.String("content", "", "Message body with {{placeholders}}")
	delay := addCmd.Int("delay", 0, "Delay in minutes after the trigger")
	trigger := addCmd.String("trigger", "", "Qualification status that triggers it (qualified, nurture, disqualified)")
	inactive := addCmd.Bool("inactive", false, "Add the template disabled")

	updatePath := updateCmd.String("path", defaultCatalogPath, "Path to catalog file")
	updateID := updateCmd.String("id", "", "Template ID to update")
	field := updateCmd.String("field", "", "Field to update (name, subject, content, delay, trigger, active)")
	value := updateCmd.String("value", "", "New value for the field")

	validatePath := validateCmd.String("path", defaultCatalogPath, "Path to catalog file")

	seedPath := seedCmd.String("path", defaultCatalogPath, "Path to catalog file")
	configPath := seedCmd.String("config", "", "Config file (defaults to configs/config.yaml)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		_ = addCmd.Parse(os.Args[2:])
		if *id == "" || *name == "" || *content == "" || *trigger == "" {
			fmt.Println("Error: id, name, content, and trigger are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		err = addTemplate(*addPath, models.FollowUpTemplate{
			ID:           *id,
			Name:         *name,
			Channel:      models.Channel(*channel),
			Subject:      *subject,
			Content:      *content,
			DelayMinutes: *delay,
			TriggerOn:    models.QualificationStatus(*trigger),
			Active:       !*inactive,
			CreatedAt:    time.Now().UTC(),
		})
		if err == nil {
			fmt.Printf("Added template: %s\n", *id)
		}

	case "update":
		_ = updateCmd.Parse(os.Args[2:])
		if *updateID == "" || *field == "" {
			fmt.Println("Error: id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateTemplate(*updatePath, *updateID, *field, *value)
		if err == nil {
			fmt.Printf("Updated template %s, field %s to %q\n", *updateID, *field, *value)
		}

	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		err = validateCatalog(*validatePath)

	case "seed":
		_ = seedCmd.Parse(os.Args[2:])
		err = seed(*seedPath, *configPath)

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func addTemplate(path string, t models.FollowUpTemplate) error {
	c, err := catalog.Load(path)
	if os.IsNotExist(err) {
		c = &catalog.Catalog{Version: "1"}
	} else if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if c.Find(t.ID) != nil {
		return fmt.Errorf("template with ID %s already exists", t.ID)
	}
	if err := t.Validate(); err != nil {
		return err
	}

	c.Templates = append(c.Templates, t)
	return catalog.Save(c, path)
}

func updateTemplate(path, id, field, value string) error {
	c, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	t := c.Find(id)
	if t == nil {
		return fmt.Errorf("template with ID %s not found", id)
	}

	switch field {
	case "name":
		t.Name = value
	case "subject":
		t.Subject = value
	case "content":
		t.Content = value
	case "trigger":
		t.TriggerOn = models.QualificationStatus(value)
	case "delay":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid delay value: %w", err)
		}
		t.DelayMinutes = n
	case "active":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid active value: %w", err)
		}
		t.Active = b
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := t.Validate(); err != nil {
		return err
	}
	return catalog.Save(c, path)
}

func validateCatalog(path string) error {
	c, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	warnings, err := c.Validate()
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if err != nil {
		return fmt.Errorf("catalog validation failed:\n  %s", strings.ReplaceAll(err.Error(), "\n", "\n  "))
	}
	fmt.Printf("Catalog validation passed. Found %d templates.\n", len(c.Templates))
	return nil
}

func seed(path, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	c, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	store := postgres.New(pg.DB)

	var inv catalog.Invalidator
	if cfg.Database.Redis.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		defer rdb.Close()
		inv = cache.NewTemplates(store, rdb.Client, time.Duration(cfg.Templates.CacheTTL)*time.Second, log)
	}

	n, err := catalog.Seed(ctx, c, store, inv)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d templates from %s\n", n, path)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func help() {
	fmt.Println(`
Usage: catalog <command> [flags]

Commands:
  add       Add a follow-up template to the catalog file
  update    Update one field of a template
  validate  Validate the catalog file
  seed      Upsert the catalog into Postgres and drop cached copies
  help      Show this help message

Examples:
  catalog add -id welcome-email -name Welcome -subject "Hi {{first_name}}" -content "Thanks {{name}}" -trigger qualified
  catalog update -id welcome-email -field active -value false
  catalog validate -path configs/followup-templates.json
  catalog seed -config configs/config.yaml

Use 'catalog <command> -h' for more information about a command.`)
}

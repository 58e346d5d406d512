package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kokoro-ai/taskadmin/internal/config"
	internal_http "github.com/kokoro-ai/taskadmin/internal/http"
	"github.com/kokoro-ai/taskadmin/internal/log"
	internal_storage "github.com/kokoro-ai/taskadmin/internal/storage"
	"github.com/kokoro-ai/taskadmin/pkg/dispatch"
	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/service"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			dispatcher := dispatch.NewHTTPDispatcher(cfg.TaskCenter.URL, cfg.TaskCenter.APIKey, log.GetLogger())
			if err := internal_http.StartServer(cfg.Server.Port, store, dispatcher, cfg.DispatchTimeout()); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}

	createTemplateCmd := &cobra.Command{
		Use:   "create-template [name]",
		Short: "Create a new task template",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			svc := newTemplateService(store)

			workflowType, _ := cmd.Flags().GetString("type")
			description, _ := cmd.Flags().GetString("description")
			specFile, _ := cmd.Flags().GetString("spec-file")
			spec := models.Document{}
			if specFile != "" {
				spec = readSpecFile(specFile)
			}
			t, err := svc.Create(service.CreateTemplateRequest{
				Name:         args[0],
				Description:  description,
				WorkflowType: models.WorkflowType(workflowType),
				WorkflowSpec: spec,
				Durations:    durationFlags(cmd),
				Operator:     operatorFlag(cmd),
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to create template: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to create template: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Created template '%s' with ID %d\n", t.Name, t.ID)
		},
	}
	createTemplateCmd.Flags().String("type", "", "Workflow type (text_lora_creation or image_lora_creation)")
	createTemplateCmd.Flags().String("description", "", "Template description")
	createTemplateCmd.Flags().String("spec-file", "", "Path to a JSON workflow spec file")
	addDurationFlags(createTemplateCmd)

	listTemplatesCmd := &cobra.Command{
		Use:   "list-templates",
		Short: "List task templates",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			svc := newTemplateService(store)

			workflowType, _ := cmd.Flags().GetString("type")
			includeInactive, _ := cmd.Flags().GetBool("all")
			templates, err := svc.List(models.TemplateFilter{
				WorkflowType:    models.WorkflowType(workflowType),
				IncludeInactive: includeInactive,
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to list templates: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list templates: %v\n", err)
				os.Exit(1)
			}
			if len(templates) == 0 {
				fmt.Fprintf(os.Stdout, "No templates found.\n")
				return
			}
			fmt.Fprintf(os.Stdout, "Templates:\n")
			for _, t := range templates {
				fmt.Fprintf(os.Stdout, "- ID: %d, Name: %s, Type: %s, Active: %t, Created: %s\n",
					t.ID, t.Name, t.WorkflowType, t.IsActive, t.CreatedAt.Format(time.RFC3339))
			}
		},
	}
	listTemplatesCmd.Flags().String("type", "", "Filter by workflow type")
	listTemplatesCmd.Flags().Bool("all", false, "Include deactivated templates")

	deactivateTemplateCmd := &cobra.Command{
		Use:   "deactivate-template [name]",
		Short: "Deactivate a task template (idempotent)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			svc := newTemplateService(store)

			if err := svc.Deactivate(args[0], operatorFlag(cmd)); err != nil {
				log.GetLogger().Errorf("Failed to deactivate template: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to deactivate template: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Deactivated template '%s'\n", args[0])
		},
	}

	seedTemplatesCmd := &cobra.Command{
		Use:   "seed-templates",
		Short: "Install the default task templates (skips existing names)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			svc := newTemplateService(store)

			if err := svc.SeedDefaults(operatorFlag(cmd)); err != nil {
				log.GetLogger().Errorf("Failed to seed templates: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to seed templates: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Default templates installed\n")
		},
	}

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Instantiate a task from a template and dispatch it to the task center",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			logger := log.GetLogger()
			audit := service.NewAuditRecorder(store, logger)
			resolver := service.NewResolver(store, logger)
			dispatcher := dispatch.NewHTTPDispatcher(cfg.TaskCenter.URL, cfg.TaskCenter.APIKey, logger)
			tasks := service.NewTaskService(store, dispatcher, audit, logger, cfg.DispatchTimeout())

			templateName, _ := cmd.Flags().GetString("template")
			workflowID, _ := cmd.Flags().GetString("workflow-id")
			workflowType, _ := cmd.Flags().GetString("type")
			specFile, _ := cmd.Flags().GetString("spec-file")
			spec := models.Document{}
			if specFile != "" {
				spec = readSpecFile(specFile)
			}

			resolved, err := resolver.Resolve(service.ResolveRequest{
				TemplateName: templateName,
				WorkflowType: models.WorkflowType(workflowType),
				WorkflowSpec: spec,
				Durations:    durationFlags(cmd),
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to resolve workflow: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to resolve workflow: %v\n", err)
				os.Exit(1)
			}
			rec, err := tasks.Instantiate(context.Background(), resolved, workflowID, operatorFlag(cmd))
			if err != nil {
				log.GetLogger().Errorf("Failed to record instantiation: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to record instantiation: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Recorded attempt %d for workflow %s (status %s)\n", rec.ID, rec.WorkflowID, rec.Status)
			if rec.ErrorMessage != "" {
				fmt.Fprintf(os.Stdout, "Dispatch error: %s\n", rec.ErrorMessage)
			}
		},
	}
	publishCmd.Flags().String("template", "", "Template name to instantiate from")
	publishCmd.Flags().String("workflow-id", "", "Workflow ID (generated when omitted)")
	publishCmd.Flags().String("type", "", "Workflow type (required without --template)")
	publishCmd.Flags().String("spec-file", "", "Path to a JSON workflow spec override file")
	addDurationFlags(publishCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List task instantiation attempts, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initStore(dbConnStr(cmd, cfg))
			defer store.Close()
			logger := log.GetLogger()
			audit := service.NewAuditRecorder(store, logger)
			dispatcher := dispatch.NewHTTPDispatcher(cfg.TaskCenter.URL, cfg.TaskCenter.APIKey, logger)
			tasks := service.NewTaskService(store, dispatcher, audit, logger, cfg.DispatchTimeout())

			workflowType, _ := cmd.Flags().GetString("type")
			status, _ := cmd.Flags().GetString("status")
			page, _ := cmd.Flags().GetInt("page")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			records, err := tasks.History(models.TaskRecordFilter{
				WorkflowType: models.WorkflowType(workflowType),
				Status:       models.TaskStatus(status),
				Page:         page,
				PageSize:     pageSize,
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to list history: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list history: %v\n", err)
				os.Exit(1)
			}
			if len(records) == 0 {
				fmt.Fprintf(os.Stdout, "No history records found.\n")
				return
			}
			now := time.Now()
			fmt.Fprintf(os.Stdout, "History:\n")
			for _, rec := range records {
				phase := "unknown"
				if p, err := tasks.Phase(rec, now); err == nil {
					phase = string(p)
				}
				fmt.Fprintf(os.Stdout, "- ID: %d, Workflow: %s, Type: %s, Status: %s, Phase: %s, Created: %s\n",
					rec.ID, rec.WorkflowID, rec.WorkflowType, rec.Status, phase, rec.CreatedAt.Format(time.RFC3339))
			}
		},
	}
	historyCmd.Flags().String("type", "", "Filter by workflow type")
	historyCmd.Flags().String("status", "", "Filter by status (pending, success, failed)")
	historyCmd.Flags().Int("page", 1, "Page number")
	historyCmd.Flags().Int("page-size", 20, "Page size")

	rootCmd.AddCommand(serveCmd, createTemplateCmd, listTemplatesCmd,
		deactivateTemplateCmd, seedTemplatesCmd, publishCmd, historyCmd)
}

func addDurationFlags(cmd *cobra.Command) {
	cmd.Flags().String("announcement-duration", "", "Announcement duration in days")
	cmd.Flags().String("execution-duration", "", "Execution duration in days")
	cmd.Flags().String("review-duration", "", "Review duration in days")
	cmd.Flags().String("reward-duration", "", "Reward duration in days")
}

func durationFlags(cmd *cobra.Command) models.PhaseDurations {
	announcement, _ := cmd.Flags().GetString("announcement-duration")
	execution, _ := cmd.Flags().GetString("execution-duration")
	review, _ := cmd.Flags().GetString("review-duration")
	reward, _ := cmd.Flags().GetString("reward-duration")
	return models.PhaseDurations{
		Announcement: announcement,
		Execution:    execution,
		Review:       review,
		Reward:       reward,
	}
}

func operatorFlag(cmd *cobra.Command) string {
	operator, _ := cmd.Flags().GetString("operator")
	if operator == "" {
		return "cli"
	}
	return operator
}

func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		log.GetLogger().Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	return cfg
}

func dbConnStr(cmd *cobra.Command, cfg *config.Config) string {
	if connStr, _ := cmd.Flags().GetString("db"); connStr != "" {
		return connStr
	}
	connStr := cfg.DatabaseURL()
	if connStr == "" {
		fmt.Fprintln(os.Stderr, "Error: --db flag, database.url config, or complete DB_* env vars required")
		os.Exit(1)
	}
	return connStr
}

func readSpecFile(path string) models.Document {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read spec file: %v\n", err)
		os.Exit(1)
	}
	var spec models.Document
	if err := json.Unmarshal(data, &spec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to parse spec file: %v\n", err)
		os.Exit(1)
	}
	return spec
}

func newTemplateService(store *internal_storage.PostgresStore) *service.TemplateService {
	logger := log.GetLogger()
	return service.NewTemplateService(store, service.NewAuditRecorder(store, logger), logger)
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Local catalog CRUD (db_* commands)",
}

var dbPreferenceGetCmd = &cobra.Command{
	Use:   "get-preference KEY",
	Short: "db_get_preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		value, ok, err := a.DbGetPreference(args[0])
		if err != nil {
			return fmt.Errorf("get preference: %w", err)
		}
		if !ok {
			fmt.Println("(not set)")
			return nil
		}
		fmt.Println(value)
		return nil
	},
}

var dbPreferenceSetCmd = &cobra.Command{
	Use:   "set-preference KEY VALUE",
	Short: "db_set_preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		if err := a.DbSetPreference(args[0], args[1]); err != nil {
			return fmt.Errorf("set preference: %w", err)
		}
		return nil
	},
}

var dbModelScoresCmd = &cobra.Command{
	Use:   "model-scores",
	Short: "db_get_model_scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		scores, err := a.DbAllModelScores()
		if err != nil {
			return fmt.Errorf("list model scores: %w", err)
		}
		for _, s := range scores {
			fmt.Printf("%-30s coding=%.2f analysis=%.2f docs=%.2f speed=%.2f\n",
				s.ModelKey, s.Coding, s.Analysis, s.Documentation, s.Speed)
		}
		return nil
	},
}

var dbUpsertModelScoreCmd = &cobra.Command{
	Use:   "upsert-model-score MODEL_KEY CODING ANALYSIS DOCUMENTATION SPEED",
	Short: "db_upsert_model_score",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		scores := make([]float64, 4)
		for i, raw := range args[1:] {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("parse score %q: %w", raw, err)
			}
			scores[i] = v
		}
		return a.DbUpsertModelScore(args[0], scores[0], scores[1], scores[2], scores[3])
	},
}

var dbEditorModelsCmd = &cobra.Command{
	Use:   "editor-models",
	Short: "db_get_editor_models",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		rows, err := a.DbAllEditorModels()
		if err != nil {
			return fmt.Errorf("list editor models: %w", err)
		}
		for _, r := range rows {
			fmt.Printf("%-20s %v\n", r.EditorType, r.SupportedModels)
		}
		return nil
	},
}

var dbUpsertEditorModelsCmd = &cobra.Command{
	Use:   "upsert-editor-models EDITOR_TYPE MODEL [MODEL...]",
	Short: "db_upsert_editor_models",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		return a.DbUpsertEditorModels(args[0], args[1:])
	},
}

var dbProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "db_get_projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		projects, err := a.DbAllProjects()
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}
		for _, p := range projects {
			fmt.Printf("%-10s %-30s %s\n", p.ID, p.RepoFullName, string(p.Metadata))
		}
		return nil
	},
}

var dbDeleteProjectCmd = &cobra.Command{
	Use:   "delete-project ID",
	Short: "db_delete_project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		return a.DbDeleteProject(args[0])
	},
}

var dbUpsertSyncableCmd = &cobra.Command{
	Use:   "upsert-syncable TABLE JSON",
	Short: "db_upsert_syncable",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		var record map[string]any
		if err := json.Unmarshal([]byte(args[1]), &record); err != nil {
			return fmt.Errorf("parse record json: %w", err)
		}

		id, err := a.DbUpsertSyncable(args[0], record)
		if err != nil {
			return fmt.Errorf("upsert syncable: %w", err)
		}
		fmt.Println(id)
		return nil
	},
}

var dbGetSyncableCmd = &cobra.Command{
	Use:   "get-syncable TABLE",
	Short: "db_get_syncable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		rows, err := a.DbAllSyncable(args[0])
		if err != nil {
			return fmt.Errorf("get syncable: %w", err)
		}
		for _, r := range rows {
			fmt.Println(string(r))
		}
		return nil
	},
}

var dbPendingSyncCmd = &cobra.Command{
	Use:   "pending-sync",
	Short: "db_get_pending_sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		entries, err := a.DbPendingSync()
		if err != nil {
			return fmt.Errorf("get pending sync: %w", err)
		}
		for _, e := range entries {
			fmt.Printf("%d %-15s %-10s %-8s %s\n", e.ID, e.TableName, e.RecordID, e.Operation, string(e.Payload))
		}
		return nil
	},
}

var dbMarkSyncedCmd = &cobra.Command{
	Use:   "mark-synced ID [ID...]",
	Short: "db_mark_synced",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Shutdown()

		ids := make([]int64, len(args))
		for i, raw := range args {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse id %q: %w", raw, err)
			}
			ids[i] = id
		}
		return a.DbMarkSynced(ids)
	},
}

func init() {
	dbCmd.AddCommand(dbPreferenceGetCmd)
	dbCmd.AddCommand(dbPreferenceSetCmd)
	dbCmd.AddCommand(dbModelScoresCmd)
	dbCmd.AddCommand(dbUpsertModelScoreCmd)
	dbCmd.AddCommand(dbEditorModelsCmd)
	dbCmd.AddCommand(dbUpsertEditorModelsCmd)
	dbCmd.AddCommand(dbProjectsCmd)
	dbCmd.AddCommand(dbDeleteProjectCmd)
	dbCmd.AddCommand(dbUpsertSyncableCmd)
	dbCmd.AddCommand(dbGetSyncableCmd)
	dbCmd.AddCommand(dbPendingSyncCmd)
	dbCmd.AddCommand(dbMarkSyncedCmd)
}

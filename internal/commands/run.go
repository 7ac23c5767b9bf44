package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kislikjeka/tallymigrate/internal/infra/postgres"
	"github.com/kislikjeka/tallymigrate/internal/infra/redis"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/pkg/config"
)

// directoryTTL bounds how long resolved parties and units are cached during a run
const directoryTTL = 10 * time.Minute

func newRunCommand(root *rootOptions) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "run <job-id> <stage>",
		Short: "Execute a migration stage in this process",
		Long: `Execute a migration stage against the configured database without the queue.

Stages: process_masters, import_masters, process_daybook, import_daybook.
With --resume the stage must already be running, e.g. after a worker crash,
and continues from its persisted cursor.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			stage := migration.Stage(args[1])
			if !stage.IsValid() {
				return fmt.Errorf("%w: %q", migration.ErrInvalidStage, stage)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := root.logger(cmd)
			ctx := cmd.Context()

			db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
			if err != nil {
				return err
			}
			defer db.Close()

			rdb, err := redis.NewClient(ctx, redis.Config{
				Addr:     cfg.RedisURL,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err != nil {
				return err
			}
			defer rdb.Close()

			jobs := postgres.NewJobRepository(db.Pool)
			artifacts := postgres.NewArtifactRepository(db.Pool)
			cancel := redis.NewCancelFlag(rdb, log)
			runner := migration.NewRunner(
				jobs,
				artifacts,
				postgres.NewDocumentRepository(db.Pool),
				daybook.NewCachedDirectory(postgres.NewDirectory(db.Pool), directoryTTL),
				redis.NewNotifier(rdb, log),
				cancel,
				migration.RunnerConfig{StageTimeout: cfg.StageTimeout},
				log.Logger,
			)

			if resume {
				err = runner.Run(ctx, id, stage)
			} else {
				svc := migration.NewService(jobs, artifacts, migration.InlineDispatcher{Runner: runner}, cancel, log.Logger)
				_, err = svc.StartStage(ctx, id, stage)
			}
			if err != nil {
				return err
			}

			job, err := jobs.GetByID(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s (%s)\n", job.ID, job.State, job.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "continue a stage that is already running")
	return cmd
}

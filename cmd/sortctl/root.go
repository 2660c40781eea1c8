package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Alp4ka/gosortable"
	"github.com/Alp4ka/gosortable/internal/logger"
)

var (
	_drivers       = []string{"postgres", "mysql"}
	_outputFormats = []string{"text", "json"}
)

type rootOptions struct {
	configPath   string
	collection   string
	driver       string
	dsn          string
	table        string
	partition    []string
	output       string
	logLevel     string
	logFormat    string
	redisAddr    string
	kafkaBrokers []string
	kafkaTopic   string
}

// openDB connects to the database. Tests replace it with a sqlmock backed
// connection.
var openDB = func(driver, dsn string, logLevel slog.Level) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown driver %q. closest: %q", driver, gosortable.ClosestMatch(driver, _drivers))
	}

	gormLevel := lo.Ternary(logLevel <= slog.LevelDebug, gormlogger.Info, gormlogger.Silent)

	return gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormLevel)})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sortctl",
		Short: "Maintain rank columns of sortable tables",
		Long: `sortctl inspects and repairs the rank column of a table managed by gosortable.

Examples:
  sortctl --driver postgres --dsn "$DSN" --table tasks --partition category_id=3 list
  sortctl --config sortable.yaml --collection tasks --dsn "$DSN" compact
  sortctl --dsn "$DSN" --table tasks move 42 --to start`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !lo.Contains(_outputFormats, opts.output) {
				return fmt.Errorf("invalid output %q: must be one of %v", opts.output, _outputFormats)
			}

			logger.Setup(opts.logLevel, opts.logFormat)

			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a sortable YAML config file")
	flags.StringVar(&opts.collection, "collection", "", "collection section of the config file; also the default table")
	flags.StringVar(&opts.driver, "driver", "postgres", "database driver (postgres|mysql)")
	flags.StringVar(&opts.dsn, "dsn", "", "database connection string")
	flags.StringVar(&opts.table, "table", "", "table name, defaults to the collection name")
	flags.StringArrayVar(&opts.partition, "partition", nil, "partition predicate column=value, repeatable")
	flags.StringVar(&opts.output, "output", "text", "output format (text|json)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format (text|json)")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "serialise operations with a redis lock at this address")
	flags.StringSliceVar(&opts.kafkaBrokers, "kafka-brokers", nil, "publish rank events to these kafka brokers")
	flags.StringVar(&opts.kafkaTopic, "kafka-topic", "sortable-events", "kafka topic for rank events")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newCompactCommand(opts))
	cmd.AddCommand(newReorderCommand(opts))
	cmd.AddCommand(newMoveCommand(opts))
	cmd.AddCommand(newResetFlagsCommand(opts))

	return cmd
}

// parsePartition turns column=value pairs into a partition. Integer values
// are passed to the database as integers.
func parsePartition(pairs []string) (gosortable.Partition, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	ret := make(gosortable.Partition, len(pairs))
	for _, pair := range pairs {
		column, value, ok := strings.Cut(pair, "=")
		if !ok || column == "" {
			return nil, fmt.Errorf("invalid partition %q: expected column=value", pair)
		}

		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			ret[column] = n
		} else {
			ret[column] = value
		}
	}

	return ret, nil
}

type session struct {
	engine *gosortable.Engine[int64, *sortRow]
	close  func()
}

func (o *rootOptions) config() (gosortable.Config, error) {
	file, err := gosortable.LoadFile(o.configPath)
	if err != nil {
		return gosortable.Config{}, err
	}

	cfg, err := file.Collection(o.collection)
	if err != nil {
		return gosortable.Config{}, err
	}

	partition, err := parsePartition(o.partition)
	if err != nil {
		return gosortable.Config{}, err
	}
	cfg.Partition = cfg.Partition.Merge(partition)

	return cfg, nil
}

func (o *rootOptions) open(ctx context.Context) (*session, error) {
	table := lo.CoalesceOrEmpty(o.table, o.collection)
	if table == "" {
		return nil, fmt.Errorf("either --table or --collection is required")
	}

	if o.dsn == "" {
		return nil, fmt.Errorf("--dsn is required")
	}

	cfg, err := o.config()
	if err != nil {
		return nil, err
	}

	db, err := openDB(o.driver, o.dsn, logger.ParseLevel(o.logLevel))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", o.driver, err)
	}

	store := gosortable.NewGormStore[int64, sortRow](db).
		WithTable(table).
		WithKeyColumn(cfg.KeyColumn).
		WithSelect(selectList(cfg))

	var closers []func() error
	engineOpts := []gosortable.Option{
		gosortable.WithLogger(logger.WithComponent("sortctl")),
		gosortable.WithLockNamespace(table),
	}

	if o.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: o.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("cannot reach redis at %s: %w", o.redisAddr, err)
		}
		closers = append(closers, client.Close)
		engineOpts = append(engineOpts, gosortable.WithLocker(gosortable.NewRedisLocker(client)))
	}

	if len(o.kafkaBrokers) > 0 {
		notifier := gosortable.NewKafkaNotifier(o.kafkaBrokers, o.kafkaTopic)
		closers = append(closers, notifier.Close)
		engineOpts = append(engineOpts, gosortable.WithNotifier(notifier))
	}

	engine, err := gosortable.NewEngine[int64, *sortRow](store, cfg, engineOpts...)
	if err != nil {
		return nil, err
	}

	return &session{
		engine: engine,
		close: func() {
			for _, closer := range closers {
				if err := closer(); err != nil {
					slog.Warn("close failed", "error", err)
				}
			}
		},
	}, nil
}

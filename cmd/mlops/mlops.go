package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/command"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/config"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/registry"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/storage"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/tracking"
	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/version"
)

const ErrExitCode = 1

// annotationNoSettings marks commands that run without a project configuration.
const annotationNoSettings = "mlops/no-settings"

var (
	errorColor = color.New(color.FgRed, color.Bold)
	hintColor  = color.New(color.FgYellow)
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	flags := log.LstdFlags
	if os.Getenv("DEBUG") == "1" {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)
	ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))

	if err := NewMlopsCmd().ExecuteContext(ctx); err != nil {
		errorColor.Fprint(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err.Error())
		if hint := errors.HintOf(err); hint != "" {
			hintColor.Fprintln(os.Stderr, "Hint: "+hint)
		}
		cancel()
		os.Exit(ErrExitCode)
	}
}

type GlobalOptions struct {
	Root       string
	ConfigFile string
	EnvFile    string
	Verbosity  int
}

func DefaultGlobalOptions() *GlobalOptions {
	return &GlobalOptions{
		Root:       ".",
		ConfigFile: config.DefaultConfigFile,
		EnvFile:    config.DefaultEnvFile,
	}
}

// App holds what the subcommands share. Settings are loaded once before any
// subcommand runs; everything else is built on first use.
type App struct {
	Options  *GlobalOptions
	Settings *config.Settings

	secrets *config.Secrets
	storage *storage.Client
}

func (a *App) Secrets() (*config.Secrets, error) {
	if a.secrets != nil {
		return a.secrets, nil
	}
	envfile := a.Options.EnvFile
	if envfile != "" {
		envfile = a.Settings.Resolve(envfile)
	}
	secrets, err := config.LoadSecrets(envfile)
	if err != nil {
		return nil, err
	}
	a.secrets = secrets
	return secrets, nil
}

func (a *App) Storage(ctx context.Context) (*storage.Client, error) {
	if a.storage != nil {
		return a.storage, nil
	}
	secrets, err := a.Secrets()
	if err != nil {
		return nil, err
	}
	cli, err := storage.NewClient(ctx, &storage.Options{
		URL:       a.Settings.Minio.URL(),
		Region:    a.Settings.Minio.Region,
		Bucket:    a.Settings.Minio.BucketName,
		AccessKey: secrets.AccessKey,
		SecretKey: secrets.SecretKey,
		PathStyle: true,
	})
	if err != nil {
		return nil, err
	}
	a.storage = cli
	return cli, nil
}

func (a *App) Registry(ctx context.Context) (*registry.RegistryStore, error) {
	var cli *storage.Client
	if a.Settings.Registry.Backend == config.RegistryBackendS3 {
		var err error
		if cli, err = a.Storage(ctx); err != nil {
			return nil, err
		}
	}
	return registry.NewFromSettings(a.Settings, cli)
}

func (a *App) Tracker(ctx context.Context) (tracking.Tracker, error) {
	secrets, err := a.Secrets()
	if err != nil {
		return nil, err
	}
	cli, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}
	tracker := tracking.NewMLflowClient(secrets.TrackingURI)
	// servers without an artifacts proxy hand out s3:// roots on the same MinIO
	tracker.Artifacts = cli
	return tracker, nil
}

func (a *App) Runner() command.Runner {
	return &command.ExecRunner{Dir: a.Settings.Root}
}

func NewMlopsCmd() *cobra.Command {
	app := &App{Options: DefaultGlobalOptions()}
	cmd := &cobra.Command{
		Use:           "mlops",
		Short:         "mlops runs the iris training pipeline with experiment tracking and data versioning",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			stdr.SetVerbosity(app.Options.Verbosity)
			if cmd.Annotations[annotationNoSettings] == "true" {
				return nil
			}
			settings, err := config.Load(app.Options.Root, app.Options.ConfigFile)
			if err != nil {
				return err
			}
			app.Settings = settings
			logr.FromContextOrDiscard(cmd.Context()).V(1).Info("loaded settings", "root", settings.Root)
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.Options.Root, "root", app.Options.Root, "project root every configured path is relative to")
	flags.StringVarP(&app.Options.ConfigFile, "config", "c", app.Options.ConfigFile, "settings file, relative to the project root")
	flags.StringVar(&app.Options.EnvFile, "env-file", app.Options.EnvFile, "dotenv file with credentials, relative to the project root")
	flags.IntVarP(&app.Options.Verbosity, "verbose", "v", app.Options.Verbosity, "log verbosity")

	cmd.AddCommand(
		NewSetupCmd(app),
		NewIngestCmd(app),
		NewPreprocessCmd(app),
		NewTrainCmd(app),
		NewPredictCmd(app),
		NewVersionCmd(app),
		NewModelsCmd(app),
		NewHashCmd(),
	)
	return cmd
}

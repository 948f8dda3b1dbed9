package cli

import (
	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientFX/internal/config"
	"github.com/AaronLay10/SentientFX/internal/storage"
)

// storeOptions selects the scene store. Empty fields fall back to
// SENTIENT_STORE_DRIVER and SENTIENT_STORE_DSN.
type storeOptions struct {
	driver string
	dsn    string
}

func (o *storeOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.driver, "driver", "", "store driver (postgres|sqlite)")
	cmd.Flags().StringVar(&o.dsn, "dsn", "", "store data source name")
}

// open connects to the configured store. Failures are reported through f
// and returned as an *ExitError. The driver name is returned for output.
func (o *storeOptions) open(f *OutputFormatter) (storage.Store, string, error) {
	cfg := config.Default()
	if err := config.ApplyEnv(cfg); err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, "", WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}
	if o.driver != "" {
		cfg.Store.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Store.DSN = o.dsn
	}
	if cfg.Store.Driver == "" {
		_ = f.Error(ErrCodeStore, "no store configured: pass --driver or set SENTIENT_STORE_DRIVER", nil)
		return nil, "", NewExitError(ExitCommandError, ErrCodeStore)
	}
	dsn, err := cfg.StoreDSN()
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return nil, "", WrapExitError(ExitCommandError, ErrCodeStore, err)
	}
	store, err := storage.Open(cfg.Store.Driver, dsn)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return nil, "", WrapExitError(ExitCommandError, ErrCodeStore, err)
	}
	f.VerboseLog("Opened %s store", cfg.Store.Driver)
	return store, cfg.Store.Driver, nil
}

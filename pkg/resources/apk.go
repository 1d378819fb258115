package resources

import "context"

// ApkDialect manages Alpine hosts. The runtime ships in the distribution's
// own repositories, so no registration step is needed.
type ApkDialect struct {
	base
}

func (d *ApkDialect) EnsureRuntimeInstalled(ctx context.Context) (Outcome, error) {
	if _, err := d.runner.Run(ctx, "apk", "info", "-e", "docker"); err == nil {
		d.logger.Debug().Msg("Runtime package already installed")
		return AlreadySatisfied, nil
	}

	if _, err := d.run(ctx, "install", "apk", "add", "docker"); err != nil {
		return "", err
	}

	d.logger.Info().Str("package", "docker").Msg("Runtime installed")
	return Applied, nil
}

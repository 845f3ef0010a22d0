package logs

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New loguje do pliku (append), opcjonalnie także na konsolę. Gdy pliku nie
// da się otworzyć, zostaje sama konsola zamiast zamykania procesu.
func New(logFilePath string, withConsole bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	_ = os.MkdirAll(filepath.Dir(logFilePath), 0o755)
	logFile, fileErr := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if fileErr == nil {
		writers = append(writers, logFile)
	}
	if withConsole || fileErr != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().
		Timestamp().
		Caller().
		Logger()
	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("path", logFilePath).Msg("Nie można otworzyć pliku log, tylko konsola")
	}

	// globalny logger dla kodu bez wstrzykniętego loggera
	log.Logger = logger
	return logger
}

// ParseLevel ustawia globalny poziom, np. z flagi --log-level.
func ParseLevel(s string) error {
	if s == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

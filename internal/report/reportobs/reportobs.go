package reportobs

import (
	"context"
	"io"
	"time"

	"trade-ledger/internal/interfaces"
	"trade-ledger/internal/logger"
	"trade-ledger/internal/trace"
	"trade-ledger/internal/types"
)

type observableWriter struct {
	writer interfaces.ReportWriter
}

var _ interfaces.ReportWriter = (*observableWriter)(nil)

func Wrap(writer interfaces.ReportWriter) interfaces.ReportWriter {
	return &observableWriter{
		writer: writer,
	}
}

func (ow *observableWriter) Format() string {
	return ow.writer.Format()
}

func (ow *observableWriter) Write(ctx context.Context, ledger *types.Ledger) (string, error) {
	ctx, span := trace.StartSpan(ctx, "report.Write")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Writing report",
		"format", ow.writer.Format(),
		"trades", len(ledger.Trades),
		"open_positions", len(ledger.OpenPositions),
	)

	path, err := ow.writer.Write(ctx, ledger)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Report generation failed", err,
			"format", ow.writer.Format(),
		)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Report generated successfully",
		"format", ow.writer.Format(),
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return path, nil
}

// Close forwards to the wrapped writer when it holds resources.
func (ow *observableWriter) Close() error {
	if c, ok := ow.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

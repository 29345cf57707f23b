package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/server/api"
	"github.com/Alia5/nscon/internal/server/api/apierror"
)

// InputStream keeps the connection open and applies one assignment per line,
// answering "ok" or a problem+json line for each. Assignments in the opening
// request payload are applied first.
func InputStream(a *procon.Assigner) api.StreamHandlerFunc {
	return func(conn net.Conn, payload string, logger *slog.Logger) error {
		defer conn.Close()

		apply := func(line string) error {
			if err := a.Apply(line); err != nil {
				logger.Debug("input stream rejected line", "line", line, "error", err)
				b, _ := json.Marshal(apierror.ErrBadRequest(err.Error()))
				_, werr := fmt.Fprintf(conn, "%s\n", b)
				return werr
			}
			_, err := io.WriteString(conn, "ok\n")
			return err
		}

		for _, line := range procon.SplitAssignments(payload) {
			if err := apply(line); err != nil {
				return err
			}
		}

		sc := bufio.NewScanner(conn)
		applied := 0
		for sc.Scan() {
			for _, line := range procon.SplitAssignments(sc.Text()) {
				if err := apply(line); err != nil {
					return err
				}
				applied++
			}
		}
		logger.Debug("input stream closed", "lines", applied)
		if err := sc.Err(); err != nil && !isClosed(err) {
			return err
		}
		return nil
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/capture"
	"go.klb.dev/clipstack/internal/clip"
	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/crypto"
	"go.klb.dev/clipstack/internal/history"
	"go.klb.dev/clipstack/internal/hub"
	"go.klb.dev/clipstack/internal/ipc"
	"go.klb.dev/clipstack/internal/linkmeta"
	"go.klb.dev/clipstack/internal/ocr"
	"go.klb.dev/clipstack/internal/paste"
	"go.klb.dev/clipstack/internal/rpc"
	"go.klb.dev/clipstack/internal/stack"
	"go.klb.dev/clipstack/internal/tlsconf"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and serve history, paste and the paste stack",
		Long: `Starts the clipstack daemon. It records every clipboard change in the
history and serves the other clipstack commands on a local socket
($CLIPSTACK_SOCKET, $XDG_RUNTIME_DIR/clipstack.sock or a named pipe on Windows).

With --addr it also listens on TCP. TLS is derived from --token, which remote
clients must present; --http adds read-only /status and /history JSON
endpoints on the same port.

Config file search order:
  /etc/clipstack/clipstack.toml
  $HOME/.config/clipstack/clipstack.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPSTACK_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("addr", "", "TCP listen address, e.g. 0.0.0.0:8753 (empty = local socket only)")
	f.String("token", "", "shared secret for TCP clients (empty = no auth)")
	f.Bool("http", false, "serve /status and /history JSON on the TCP port")
	f.String("socket", ipc.SocketPath(), "local socket path")
	f.Int("max-items", history.DefaultMaxItems, "history size; pinned clips are never trimmed (0 = unlimited)")
	f.String("journal", defaultJournalPath(), "history journal path (empty = keep history in memory)")
	f.String("passphrase", "", "encrypt the journal with a key derived from this passphrase")
	f.Duration("grace-delay", stack.DefaultGraceDelay, "how long the paste stack stays up after its last paste")
	f.Duration("keystroke-delay", paste.DefaultKeystrokeDelay, "pause between clipboard write and paste keystroke")
	f.Bool("no-clipboard", false, "use an in-process clipboard instead of the system one")
	f.Bool("plain-text", false, "paste plain text by default")
	f.Bool("link-previews", true, "fetch titles and images for copied links")
	f.Bool("ocr", false, "extract text from copied images with tesseract")
	f.StringSlice("ocr-languages", nil, "tesseract languages, e.g. eng,deu")
	f.StringSlice("ignore-kinds", nil, "content kinds not to record: text,richText,image,file,link,color")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New()
	store, err := openHistory(v, h)
	if err != nil {
		return err
	}
	defer closeHistory(store)

	copts, err := captureOptions(v)
	if err != nil {
		return err
	}
	var backend clip.Backend
	if v.GetBool("no-clipboard") {
		backend = clip.NewMemory()
	} else {
		backend = clip.New()
	}
	defer backend.Close()
	mon := capture.New(backend, store, copts...)

	ps := paste.New(store, mon,
		paste.WithPlainText(v.GetBool("plain-text")),
		paste.WithKeystrokeDelay(v.GetDuration("keystroke-delay")),
	)
	defer ps.Close()

	st := stack.New(ps.StackExecutor(),
		stack.WithGraceDelay(v.GetDuration("grace-delay")),
		stack.WithIndicator(stack.Indicators{stack.NewHubIndicator(h), stack.LogIndicator{}}),
	)
	defer st.Deactivate()

	token := v.GetString("token")
	svc := rpc.NewService(rpc.Deps{
		Store:   store,
		Monitor: mon,
		Paste:   ps,
		Stack:   st,
		Hub:     h,
		Version: Version,
	})
	srv := rpc.NewServer(svc, token)

	socket := v.GetString("socket")
	ipcLn, err := ipc.Listen(socket)
	if err != nil {
		return fmt.Errorf("ipc: %w", err)
	}

	slog.Info("clipstack daemon starting",
		"version", Version,
		"backend", mon.Backend(),
		"socket", socket,
		"items", store.Len(),
	)

	errc := make(chan error, 3)
	var wg sync.WaitGroup
	wg.Go(func() {
		if err := mon.Run(ctx); err != nil {
			errc <- fmt.Errorf("capture: %w", err)
		}
	})
	wg.Go(func() {
		if err := srv.ServeIPC(ipcLn); err != nil {
			errc <- fmt.Errorf("ipc: %w", err)
		}
	})

	if addr := v.GetString("addr"); addr != "" {
		ln, creds, err := listenTCP(addr, token)
		if err != nil {
			stop()
			srv.Stop()
			wg.Wait()
			return err
		}
		if token == "" {
			slog.Warn("TCP listener has no token: anyone who can reach it can read the history", "addr", addr)
		}
		withHTTP := v.GetBool("http")
		wg.Go(func() {
			if err := srv.ServeTCP(ln, creds, withHTTP); err != nil {
				errc <- fmt.Errorf("tcp: %w", err)
			}
		})
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-errc:
		slog.Error("daemon failed", "err", err)
	}
	stop()
	srv.Stop()
	wg.Wait()
	mon.Wait()
	return err
}

func openHistory(v *viper.Viper, h *hub.Hub) (*history.Store, error) {
	opts := []history.Option{
		history.WithMaxItems(v.GetInt("max-items")),
		history.WithPublisher(h),
	}
	path := v.GetString("journal")
	if path == "" {
		slog.Info("history journal disabled, history is kept in memory")
		return history.New(opts...), nil
	}

	var key *crypto.Key
	if pp := v.GetString("passphrase"); pp != "" {
		var err error
		if key, err = crypto.DeriveKey(pp, crypto.PurposeJournal); err != nil {
			return nil, fmt.Errorf("journal key: %w", err)
		}
	}
	store, err := history.Open(path, key, opts...)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", path, err)
	}
	return store, nil
}

func closeHistory(store *history.Store) {
	if err := store.Compact(); err != nil {
		slog.Warn("journal compaction failed", "err", err)
	}
	if err := store.Close(); err != nil {
		slog.Warn("journal close failed", "err", err)
	}
}

func captureOptions(v *viper.Viper) ([]capture.Option, error) {
	var ignore []content.Kind
	for _, s := range v.GetStringSlice("ignore-kinds") {
		k, err := content.ParseKind(s)
		if err != nil {
			return nil, fmt.Errorf("--ignore-kinds: %w", err)
		}
		ignore = append(ignore, k)
	}
	opts := []capture.Option{capture.WithIgnoreKinds(ignore...)}

	if v.GetBool("link-previews") {
		opts = append(opts, capture.WithLinkFetcher(linkmeta.New()))
	}
	if v.GetBool("ocr") {
		t := ocr.Tesseract{Languages: v.GetStringSlice("ocr-languages")}
		if t.Available() {
			opts = append(opts, capture.WithRecognizer(t))
		} else {
			slog.Warn("OCR requested but tesseract is not installed")
		}
	}
	return opts, nil
}

func listenTCP(addr, token string) (net.Listener, *tlsconf.Credentials, error) {
	creds, err := tlsconf.New(rpc.TLSPassphrase(token))
	if err != nil {
		return nil, nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, creds, nil
}

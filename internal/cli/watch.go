package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/namimod25/toko-online/pkg/catalog"
	"github.com/namimod25/toko-online/pkg/catalog/subscriber"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	url         string
	productsURL string
	products    []string
	admin       bool
	noGlobal    bool
}

func watchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print catalog feed messages as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "ws://localhost:8080/api/realtime", "feed endpoint")
	cmd.Flags().StringVar(&opts.productsURL, "products-url", "", "product list endpoint; when set, keep a local view and print it on every change")
	cmd.Flags().StringSliceVar(&opts.products, "product", nil, "product id to follow (repeatable)")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "join the admin room")
	cmd.Flags().BoolVar(&opts.noGlobal, "no-global", false, "leave the global room")
	return cmd
}

func runWatch(ctx context.Context, out io.Writer, opts watchOptions) error {
	var outMu sync.Mutex
	enc := json.NewEncoder(out)
	emit := func(v any) {
		outMu.Lock()
		defer outMu.Unlock()
		_ = enc.Encode(v)
	}

	var view *syncedView
	if opts.productsURL != "" {
		view = newSyncedView()
	}

	refetch := func() {
		if view == nil {
			return
		}
		products, err := fetchProducts(ctx, opts.productsURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "refetch failed: %v\n", err)
		}
		for _, err := range view.reset(products, err == nil) {
			fmt.Fprintf(os.Stderr, "apply: %v\n", err)
		}
		emit(view.list())
	}

	session := subscriber.New(subscriber.Options{
		URL:       opts.url,
		Reconnect: true,
		OnMessage: func(msg catalog.Message) {
			emit(msg)
			if view == nil {
				return
			}
			changed, err := view.apply(msg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "apply %s: %v\n", msg.Channel, err)
				return
			}
			if changed {
				emit(view.list())
			}
		},
		OnResync: refetch,
		OnStateChange: func(state subscriber.State) {
			if state == subscriber.Disconnected && view != nil {
				view.hold()
			}
			fmt.Fprintf(os.Stderr, "%s %s\n", time.Now().Format(time.TimeOnly), state)
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "feed error: %v\n", err)
		},
	})
	defer session.Close()

	for _, id := range opts.products {
		if err := session.EnterProduct(id); err != nil {
			return fmt.Errorf("product %q: %w", id, err)
		}
	}
	if opts.admin {
		if err := session.EnterAdmin(); err != nil {
			return err
		}
	}
	if opts.noGlobal {
		if err := session.Leave(catalog.GlobalRoom); err != nil {
			return err
		}
	}

	if err := session.Connect(ctx); err != nil {
		return err
	}
	refetch()

	<-ctx.Done()
	return nil
}

// syncedView holds feed messages back while a snapshot is in flight and replays
// them once it lands, so events delivered during the fetch survive the reset.
type syncedView struct {
	mu      sync.Mutex
	view    *subscriber.View
	holding bool
	held    []catalog.Message
}

func newSyncedView() *syncedView {
	return &syncedView{view: subscriber.NewView(), holding: true}
}

// hold starts buffering until the next reset.
func (v *syncedView) hold() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.holding = true
}

func (v *syncedView) apply(msg catalog.Message) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.holding {
		v.held = append(v.held, msg)
		return false, nil
	}
	return v.view.Apply(msg)
}

// reset installs products when ok and replays the held messages on top.
func (v *syncedView) reset(products []catalog.Product, ok bool) []error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if ok {
		v.view.Reset(products)
	}

	var errs []error
	for _, msg := range v.held {
		if _, err := v.view.Apply(msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", msg.Channel, err))
		}
	}
	v.held = nil
	v.holding = false

	return errs
}

func (v *syncedView) list() []catalog.Product {
	return v.view.List()
}

func fetchProducts(ctx context.Context, url string) ([]catalog.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Products []catalog.Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Products, nil
}

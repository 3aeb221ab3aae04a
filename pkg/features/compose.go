package features

import (
	"context"
	"log/slog"

	"github.com/vango-dev/datatable/pkg/features/density"
	"github.com/vango-dev/datatable/pkg/features/dragsort"
	"github.com/vango-dev/datatable/pkg/features/expansion"
	"github.com/vango-dev/datatable/pkg/features/pinning"
	"github.com/vango-dev/datatable/pkg/features/selection"
	"github.com/vango-dev/datatable/pkg/features/sizing"
	"github.com/vango-dev/datatable/pkg/features/tree"
	"github.com/vango-dev/datatable/pkg/features/visibility"
	"github.com/vango-dev/datatable/pkg/pref"
	"github.com/vango-dev/datatable/pkg/table"
)

// PrefConfig configures one preference-backed feature. An empty StorageKey
// disables the feature. Storage overrides the shared Config.Storage.
type PrefConfig[V any] struct {
	StorageKey    string
	Storage       pref.Storage[V]
	SchemaVersion int
	Migrate       pref.Migration[V]
}

// DensityConfig configures the density feature.
type DensityConfig struct {
	PrefConfig[table.Density]
	Default table.Density
}

// PinningConfig configures column pinning.
type PinningConfig struct {
	Enabled bool
	Initial *table.PinningState
}

// ExpansionConfig configures plain expansion. It is ignored when the tree is
// enabled, since the tree drives expansion itself.
type ExpansionConfig struct {
	Enabled bool
	Initial table.ExpandedState
}

// Config is everything Compose needs.
type Config[T, F any] struct {
	Columns  []table.ColumnDef
	GetRowID table.RowIDFunc[T]

	Adapter table.StateAdapter[F]
	Source  table.DataSource

	// Storage backs every preference feature that has no Storage of its own.
	Storage pref.RawStorage

	Selection  selection.Config[T, F]
	Visibility PrefConfig[table.VisibilityState]
	Sizing     PrefConfig[table.SizingState]
	Density    DensityConfig
	Pinning    PinningConfig
	Expansion  ExpansionConfig
	Tree       tree.Config[T]
	DragSort   dragsort.Config[T]

	OnChange func()
	Logger   *slog.Logger
}

// Composition holds the features of one table instance.
type Composition[T, F any] struct {
	Meta ColumnMeta

	Core       *Core[T, F]
	Selection  *selection.Feature[T, F]
	Visibility *visibility.Feature
	Sizing     *sizing.Feature
	Density    *density.Feature
	Pinning    *pinning.Feature
	Expansion  *expansion.Feature[T]
	Tree       *tree.Feature[T]
	DragSort   *dragsort.Feature[T]

	features []table.Feature[T]
}

func typed[V any](own pref.Storage[V], raw pref.RawStorage) pref.Storage[V] {
	if own != nil {
		return own
	}
	if raw == nil {
		return nil
	}
	return pref.JSON[V](raw)
}

// Compose derives column metadata and builds every feature. It fails only on
// setup errors: cross-page selection without a row identity (DT001), columns
// without ids or references to unknown columns (DT002), and duplicate column
// ids (DT003).
func Compose[T, F any](cfg Config[T, F]) (*Composition[T, F], error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	meta, err := DeriveColumnMeta(cfg.Columns)
	if err != nil {
		return nil, err
	}
	if cfg.Pinning.Initial != nil {
		if err := meta.checkRefs(cfg.Pinning.Initial.Left, cfg.Pinning.Initial.Right); err != nil {
			return nil, err
		}
	}

	sel := cfg.Selection
	if sel.GetRowID == nil {
		sel.GetRowID = cfg.GetRowID
	}
	sel.OnChange = cfg.OnChange
	if sel.Logger == nil {
		sel.Logger = cfg.Logger
	}
	selFeature, err := selection.New(sel)
	if err != nil {
		return nil, err
	}

	c := &Composition[T, F]{
		Meta:      meta,
		Core:      NewCore[T](cfg.Adapter, cfg.Source),
		Selection: selFeature,
		Visibility: visibility.New(visibility.Config{
			StorageKey:    cfg.Visibility.StorageKey,
			Storage:       typed(cfg.Visibility.Storage, cfg.Storage),
			SchemaVersion: cfg.Visibility.SchemaVersion,
			Migrate:       cfg.Visibility.Migrate,
			Columns:       cfg.Columns,
			OnChange:      cfg.OnChange,
			Logger:        cfg.Logger,
		}),
		Sizing: sizing.New(sizing.Config{
			StorageKey:    cfg.Sizing.StorageKey,
			Storage:       typed(cfg.Sizing.Storage, cfg.Storage),
			SchemaVersion: cfg.Sizing.SchemaVersion,
			Migrate:       cfg.Sizing.Migrate,
			Columns:       cfg.Columns,
			OnChange:      cfg.OnChange,
			Logger:        cfg.Logger,
		}),
		Density: density.New(density.Config{
			StorageKey:    cfg.Density.StorageKey,
			Storage:       typed(cfg.Density.Storage, cfg.Storage),
			SchemaVersion: cfg.Density.SchemaVersion,
			Migrate:       cfg.Density.Migrate,
			Default:       cfg.Density.Default,
			OnChange:      cfg.OnChange,
			Logger:        cfg.Logger,
		}),
		Pinning: pinning.New(pinning.Config{
			Enabled:  cfg.Pinning.Enabled,
			Initial:  cfg.Pinning.Initial,
			Columns:  cfg.Columns,
			OnChange: cfg.OnChange,
		}),
	}

	c.features = []table.Feature[T]{
		c.Core,
		c.Selection,
		prefFeature[T, *visibility.Feature]{c.Visibility, visibility.Runtime[T]},
		prefFeature[T, *sizing.Feature]{c.Sizing, sizing.Runtime[T]},
		prefFeature[T, *density.Feature]{c.Density, density.Runtime[T]},
		pinningFeature[T]{c.Pinning},
	}

	if cfg.Tree.Enabled {
		tc := cfg.Tree
		tc.OnChange = cfg.OnChange
		if tc.Logger == nil {
			tc.Logger = cfg.Logger
		}
		c.Tree = tree.New(tc)
		c.Expansion = c.Tree.Expansion()
		c.features = append(c.features, c.Tree)
	} else {
		c.Expansion = expansion.New[T](expansion.Config{
			Enabled:  cfg.Expansion.Enabled,
			Initial:  cfg.Expansion.Initial,
			OnChange: cfg.OnChange,
		})
		c.features = append(c.features, c.Expansion)
	}

	dc := cfg.DragSort
	if dc.Logger == nil {
		dc.Logger = cfg.Logger
	}
	c.DragSort = dragsort.New(dc)
	c.features = append(c.features, c.DragSort)

	return c, nil
}

// Features returns the features in merge order.
func (c *Composition[T, F]) Features() []table.Feature[T] {
	return c.features
}

// Runtimes returns the runtimes in merge order.
func (c *Composition[T, F]) Runtimes() []table.Runtime[T] {
	out := make([]table.Runtime[T], 0, len(c.features))
	for _, f := range c.features {
		out = append(out, f.Runtime())
	}
	return out
}

// SetColumns re-derives column metadata and re-merges the column preferences.
func (c *Composition[T, F]) SetColumns(cols []table.ColumnDef) error {
	meta, err := DeriveColumnMeta(cols)
	if err != nil {
		return err
	}
	c.Meta = meta
	c.Visibility.SetColumns(cols)
	c.Sizing.SetColumns(cols)
	return nil
}

// prefFeature adapts a preference feature to table.Feature and forwards its
// lifecycle methods to the host.
type prefFeature[T any, P prefLoader] struct {
	feature P
	runtime func(P) table.Runtime[T]
}

type prefLoader interface {
	Load(ctx context.Context)
	Close()
	Flush()
}

func (p prefFeature[T, P]) Runtime() table.Runtime[T] { return p.runtime(p.feature) }
func (p prefFeature[T, P]) Load(ctx context.Context)  { p.feature.Load(ctx) }
func (p prefFeature[T, P]) Close()                    { p.feature.Close() }
func (p prefFeature[T, P]) Flush()                    { p.feature.Flush() }

type pinningFeature[T any] struct {
	*pinning.Feature
}

func (p pinningFeature[T]) Runtime() table.Runtime[T] {
	return pinning.Runtime[T](p.Feature)
}

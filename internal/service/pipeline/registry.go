// Package pipeline resolves pipeline specs and orchestrates runs: read and
// normalize every file of a batch, merge, then sync the result to the remote
// spreadsheet and record the run.
package pipeline

import (
	"sort"

	"sheetsync/internal/domain"
)

// Registry holds the pipeline catalogue: the built-in specs plus any loaded
// from YAML. YAML specs may override a built-in by name.
type Registry struct {
	specs map[string]domain.PipelineSpec
}

// NewRegistry returns a registry preloaded with the built-in pipelines.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]domain.PipelineSpec)}
	for _, spec := range builtinSpecs() {
		if err := r.Register(spec); err != nil {
			panic("builtin pipeline spec invalid: " + err.Error())
		}
	}
	return r
}

// Register validates a spec and adds it to the catalogue, replacing any
// existing spec with the same name.
func (r *Registry) Register(spec domain.PipelineSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	r.specs[spec.Name] = spec
	return nil
}

// Get resolves a pipeline by name. Unknown names are a validation error so
// callers can report them as bad input rather than a missing resource.
func (r *Registry) Get(name string) (domain.PipelineSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return domain.PipelineSpec{}, domain.ErrValidation("unknown pipeline %q", name)
	}
	return spec, nil
}

// List returns all specs sorted by name.
func (r *Registry) List() []domain.PipelineSpec {
	out := make([]domain.PipelineSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func builtinSpecs() []domain.PipelineSpec {
	return []domain.PipelineSpec{
		salesSpec(),
		campaignsSpec(),
		displaySpec(),
		inventorySpec(),
		launchingSpec(),
		asinSpec(),
	}
}

// salesSpec matches the Sellerboard daily report. The canonical header
// "Refund сost" carries a Cyrillic "с" because the upstream sheet does.
func salesSpec() domain.PipelineSpec {
	fields := autoFields(
		"Product", "ASIN", "Date", "SKU", "Units", "Refunds", "Sales", "Promo",
		"Ads", "Sponsored products (PPC)", "% Refunds", "Refund сost",
		"Amazon fees", "Cost of Goods", "Gross profit", "Net profit",
		"Estimated payout", "Real ACOS", "Sessions", "VAT", "Shipping",
	)
	fields = withKind(fields, domain.FieldDate, "Date")
	fields = withAliases(fields, "Sponsored products (PPC)",
		domain.AliasRule{All: []string{"sponsored", "ppc"}})
	fields = withAliases(fields, "Refund сost",
		domain.AliasRule{All: []string{"refund"}, Any: []string{"cost", "сost"}})

	return domain.PipelineSpec{
		Name:           "sales",
		Description:    "Sellerboard daily sales report",
		Worksheet:      "Raw_SB_H2_2025",
		PerMarket:      true,
		CreateRows:     1000,
		CreateCols:     30,
		HeaderOnCreate: true,
		Schema:         domain.Schema{Fields: fields},
		DateField:      "Date",
		DatePolicy:     domain.DatePolicyNull,
		DatePatterns: []domain.DatePattern{
			{Pattern: `(\d{2}_\d{2}_\d{4})`, Layout: "02_01_2006"},
		},
		SortAsc:  "Date",
		SortDesc: "Sales",
		Mode:     domain.SyncModeAppend,
	}
}

// campaignsSpec matches the sponsored-ads campaign export.
func campaignsSpec() domain.PipelineSpec {
	fields := autoFields(
		"ASIN", "Date", "Campaign type", "Campaign", "Status", "Country",
		"Portfolio", "Daily Budget", "Bidding Strategy", "Top-of-search IS",
		"Avg.time in Budget", "Impressions", "Clicks", "CTR", "Spend", "CPC",
		"Orders", "Sales", "Units", "CVR",
	)
	fields = withKind(fields, domain.FieldDate, "Date")
	fields = withKind(fields, domain.FieldCurrency, "Daily Budget", "Spend", "Sales")
	fields = withKind(fields, domain.FieldFloat,
		"Top-of-search IS", "Avg.time in Budget", "CTR", "CPC", "CVR")
	fields = withKind(fields, domain.FieldInt, "Impressions", "Clicks", "Orders", "Units")

	return domain.PipelineSpec{
		Name:           "campaigns",
		Description:    "Sponsored-ads campaign report",
		Worksheet:      "Raw_XN_Q4_2025",
		PerMarket:      true,
		CreateRows:     1000,
		CreateCols:     30,
		HeaderOnCreate: true,
		Schema:         domain.Schema{Fields: fields},
		DateField:      "Date",
		DatePolicy:     domain.DatePolicyToday,
		Derivations: []domain.Derivation{
			{Target: "ASIN", Source: "Portfolio", Method: domain.DeriveMethodASINSearch},
		},
		Rewrites: []domain.TextRewrite{
			{Column: "Campaign type", Pairs: []domain.RewritePair{
				{Old: "sponsoredBrands", New: "SB"},
				{Old: "sponsoredDisplay", New: "SD"},
				{Old: "sponsoredProducts", New: "SP"},
				{Old: "sponsoredbrands", New: "SB"},
				{Old: "sponsoreddisplay", New: "SD"},
				{Old: "sponsoredproducts", New: "SP"},
				{Old: "Sponsored Brands", New: "SB"},
				{Old: "Sponsored Display", New: "SD"},
				{Old: "Sponsored Products", New: "SP"},
			}},
		},
		DropColumns: []string{
			"Profile", "Labels", "Budget group", "ACOS", "ROAS", "CPA",
			"Sales Same SKU", "Sales Other SKU", "Orders Same SKU",
			"Orders Other SKU", "Units Same SKU", "Units Other SKU",
			"Target type", "Current Budget", "SP Off-site Ads Strategy",
		},
		PruneEmptyRows: true,
		PruneEmptyCols: true,
		MergeKey:       []string{"ASIN", "Date", "Campaign"},
		SortAsc:        "Date",
		SortDesc:       "Sales",
		Mode:           domain.SyncModeAppend,
	}
}

// displaySpec matches the DSP display-ads export. Source files end with a
// totals row and identify products only through the Creative column.
func displaySpec() domain.PipelineSpec {
	fields := autoFields(
		"ASIN", "Creative", "Date", "Total cost", "Total product sales",
		"eCPM", "Total CPDPV", "Total ROAS",
		"Total percent of purchases new-to-brand", "CTR", "Total DPVR",
		"Total ATCR", "Total eCPP", "ROAS", "VCR", "Impressions",
		"Click-throughs", "Total DPV", "Total ATC", "Total purchase",
		"Total units sold", "Branded Searches", "eCPC", "DPV", "DPVR",
		"CPDPV", "ATC", "ATCR", "Total CPATC", "CPATC", "Product sales",
		"Total new-to-brand product sales", "New-to-brand product Sales",
		"Total new-to-brand ROAS", "New-to-brand return on advertising spend",
		"Purchases", "Total new-to-brand purchases", "New-to-brand purchases",
		"Total Purchase Rate",
	)
	fields = withKind(fields, domain.FieldDate, "Date")

	return domain.PipelineSpec{
		Name:           "display",
		Description:    "DSP display-ads report",
		Worksheet:      "Raw_DSP_H2_2025",
		PerMarket:      true,
		CreateRows:     2000,
		CreateCols:     50,
		HeaderOnCreate: true,
		Schema:         domain.Schema{Fields: fields},
		DateField:      "Date",
		DatePolicy:     domain.DatePolicyNull,
		DatePatterns: []domain.DatePattern{
			{Pattern: `(\d{8})`, Layout: "20060102"},
		},
		Derivations: []domain.Derivation{
			{Target: "ASIN", Source: "Creative", Method: domain.DeriveMethodPrefix, Required: true},
		},
		DropColumns: []string{"Creative Asset"},
		DropLastRow: true,
		Mode:        domain.SyncModeAppend,
	}
}

// inventorySpec mirrors the FBA stock snapshot sheet as-is, so it runs in
// passthrough mode and replaces the whole worksheet on every run.
func inventorySpec() domain.PipelineSpec {
	return domain.PipelineSpec{
		Name:           "inventory",
		Description:    "FBA stock snapshot",
		Worksheet:      "FBA Stock",
		PerMarket:      true,
		CreateRows:     1000,
		CreateCols:     30,
		DatePolicy:     domain.DatePolicyNone,
		PruneEmptyCols: true,
		Mode:           domain.SyncModeReplace,
		ClearScope:     domain.ClearScopeSheet,
		StampColumn:    "Last Updated",
	}
}

// launchingSpec matches the product launching dimension. Only the canonical
// columns are cleared on replace; the sheet carries other data to the right.
func launchingSpec() domain.PipelineSpec {
	fields := autoFields(
		"Launching", "Ads", "Idea", "Qty", "Start", "End", "Progress",
		"Link Idea", "Link", "Quy Trình", "Đánh giá", "Parent items", "Item",
		"ASIN", "ASIN (Item)", "ID",
	)
	fields = withAliases(fields, "Parent items",
		domain.AliasRule{All: []string{"parent", "item"}})
	fields = withAliases(fields, "ASIN (Item)",
		domain.AliasRule{All: []string{"asin", "item"}})

	return domain.PipelineSpec{
		Name:        "launching",
		Description: "Product launching dimension",
		Worksheet:   "Dim_Launching",
		CreateRows:  1000,
		CreateCols:  30,
		Schema:      domain.Schema{Fields: fields},
		DatePolicy:  domain.DatePolicyNone,
		Mode:        domain.SyncModeReplace,
		ClearScope:  domain.ClearScopeColumns,
	}
}

// asinSpec mirrors the ASIN dimension sheet as-is.
func asinSpec() domain.PipelineSpec {
	return domain.PipelineSpec{
		Name:           "asin",
		Description:    "ASIN dimension",
		Worksheet:      "Dim_ASIN",
		CreateRows:     1000,
		CreateCols:     30,
		DatePolicy:     domain.DatePolicyNone,
		PruneEmptyCols: true,
		Mode:           domain.SyncModeReplace,
		ClearScope:     domain.ClearScopeSheet,
		StampColumn:    "Last Updated",
	}
}

func autoFields(names ...string) []domain.Field {
	fields := make([]domain.Field, len(names))
	for i, n := range names {
		fields[i] = domain.Field{Name: n, Kind: domain.FieldAuto}
	}
	return fields
}

func withKind(fields []domain.Field, kind domain.FieldKind, names ...string) []domain.Field {
	for _, n := range names {
		for i := range fields {
			if fields[i].Name == n {
				fields[i].Kind = kind
			}
		}
	}
	return fields
}

func withAliases(fields []domain.Field, name string, rules ...domain.AliasRule) []domain.Field {
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Aliases = rules
		}
	}
	return fields
}

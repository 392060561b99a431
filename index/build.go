package index

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/arloliu/go-stdf/limit"
	"github.com/arloliu/go-stdf/logger"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
)

const (
	progressStep     = 5
	ctxCheckInterval = 4096
)

type buildOptions struct {
	order    stdf.Endianness
	size     int64
	progress func(percent int)
	logger   logger.Logger
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithEndianness forces the byte order instead of detecting it from the FAR.
func WithEndianness(order stdf.Endianness) BuildOption {
	return func(o *buildOptions) { o.order = order }
}

// WithSize sets the stream size used to compute progress.
func WithSize(size int64) BuildOption {
	return func(o *buildOptions) { o.size = size }
}

// WithProgress sets a callback that receives progress in 5 percent milestones.
func WithProgress(fn func(percent int)) BuildOption {
	return func(o *buildOptions) { o.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = l }
}

type chanKey struct {
	hs    selection.HeadSite
	index uint16
}

type binKey struct {
	kind stdf.RecordType
	num  uint16
}

// tsrCount accumulates TSR fail counts of one test. Summary records win over per-site ones.
type tsrCount struct {
	summary, sites           int
	hasSummary, hasSites     bool
	summaryValid, sitesValid bool
}

func (c *tsrCount) add(tsr *stdf.TSRRecord) {
	if tsr.Summary() {
		if !c.hasSummary {
			c.hasSummary, c.summaryValid = true, true
		}
		c.summary += int(tsr.FailCnt)
		c.summaryValid = c.summaryValid && tsr.HasFailCount()
		return
	}
	if !c.hasSites {
		c.hasSites, c.sitesValid = true, true
	}
	c.sites += int(tsr.FailCnt)
	c.sitesValid = c.sitesValid && tsr.HasFailCount()
}

// merge folds the counts of o into c.
func (c *tsrCount) merge(o *tsrCount) {
	if o.hasSummary {
		c.summaryValid = (c.summaryValid || !c.hasSummary) && o.summaryValid
		c.hasSummary = true
		c.summary += o.summary
	}
	if o.hasSites {
		c.sitesValid = (c.sitesValid || !c.hasSites) && o.sitesValid
		c.hasSites = true
		c.sites += o.sites
	}
}

// count returns the fail count, -1 when a contributing record has none.
func (c *tsrCount) count() int {
	switch {
	case c.hasSummary && c.summaryValid:
		return c.summary
	case c.hasSummary:
		return -1
	case c.sitesValid:
		return c.sites
	default:
		return -1
	}
}

type builder struct {
	opts     *buildOptions
	snap     *Snapshot
	active   map[selection.HeadSite]int
	tests    map[stdf.TestID]*OffsetRecord
	names    map[uint32]string
	tsr      map[stdf.TestID]*tsrCount
	pins     map[uint16]int
	channels map[chanKey]int
	bins     map[binKey]int
	wafer    int
	orphans  int
	skipped  int
	reported int
}

// Build scans r from the start and indexes every record.
//
// Fail counts are taken from TSRs, preferring the all-sites summary, and otherwise counted
// from the test flags.
//
// A stream that ends inside a record is indexed up to the last complete record. Test records
// whose body cannot be decoded are skipped. Both cases are logged as warnings.
func Build(ctx context.Context, r io.Reader, opts ...BuildOption) (*MemIndex, error) {
	o := &buildOptions{order: stdf.AutoEndian, logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(o)
	}

	b := &builder{
		opts: o,
		snap: &Snapshot{
			Version:      snapshotVersion,
			SiteInfo:     make(map[uint8][]int),
			RecordCounts: make(map[stdf.RecordType]int),
		},
		active:   make(map[selection.HeadSite]int),
		tests:    make(map[stdf.TestID]*OffsetRecord),
		names:    make(map[uint32]string),
		tsr:      make(map[stdf.TestID]*tsrCount),
		pins:     make(map[uint16]int),
		channels: make(map[chanKey]int),
		bins:     make(map[binKey]int),
		wafer:    -1,
		reported: -1,
	}

	sc := stdf.NewScanner(r, o.order)
	for sc.Next() {
		if (sc.Count()-1)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b.snap.RecordCounts[sc.Header().Type()]++
		b.record(sc)
		b.progress(sc.Offset())
	}

	if err := sc.Err(); err != nil {
		if !errors.Is(err, stdf.ErrParse) || sc.Count() == 0 {
			return nil, err
		}
		o.logger.Warn("stream ends inside a record, index truncated", "records", sc.Count(), "error", err)
	}
	if b.orphans > 0 {
		o.logger.Warn("test records outside of a PIR/PRR pair ignored", "count", b.orphans)
	}
	if b.skipped > 0 {
		o.logger.Warn("malformed records skipped", "count", b.skipped)
	}

	b.snap.Order = sc.Order()
	b.finish()
	if o.progress != nil && b.reported < 100 {
		o.progress(100)
	}

	return FromSnapshot(b.snap)
}

func (b *builder) progress(offset int64) {
	if b.opts.progress == nil || b.opts.size <= 0 {
		return
	}
	percent := int(offset * 100 / b.opts.size)
	percent = min(percent-percent%progressStep, 100-progressStep)
	if percent > b.reported {
		b.reported = percent
		b.opts.progress(percent)
	}
}

func (b *builder) record(sc *stdf.Scanner) {
	switch sc.Header().Type() {
	case stdf.MIR, stdf.WCR, stdf.PIR, stdf.PRR, stdf.PMR, stdf.HBR, stdf.SBR, stdf.WIR, stdf.WRR,
		stdf.PTR, stdf.MPR, stdf.FTR, stdf.TSR:
	default:
		return
	}

	rec, err := sc.Record()
	if err != nil {
		b.skipped++
		b.opts.logger.Debug("skip malformed record", "type", sc.Header().Type(), "offset", sc.Offset(), "error", err)
		return
	}

	switch v := rec.(type) {
	case *stdf.MIRRecord:
		b.snap.MIR = v
	case *stdf.WCRRecord:
		b.snap.WCR = v
	case *stdf.PIRRecord:
		b.openDUT(v)
	case *stdf.PRRRecord:
		b.closeDUT(v)
	case *stdf.PMRRecord:
		b.pin(v)
	case *stdf.BinRecord:
		b.bin(v)
	case *stdf.WIRRecord:
		b.snap.Wafers = append(b.snap.Wafers, Wafer{Head: v.Head, WaferID: v.WaferID, StartT: v.StartT})
		b.wafer = len(b.snap.Wafers) - 1
	case *stdf.WRRRecord:
		b.closeWafer(v)
	case stdf.TestRecord:
		b.test(v, sc.Offset(), sc.Header().Len)
	case *stdf.TSRRecord:
		id := stdf.TestID{Number: v.TestNum, Name: v.TestNam}
		c, ok := b.tsr[id]
		if !ok {
			c = &tsrCount{}
			b.tsr[id] = c
		}
		c.add(v)
	}
}

func (b *builder) openDUT(pir *stdf.PIRRecord) {
	hs := selection.HeadSite{Head: pir.Head, Site: pir.Site}
	b.snap.DutArray = append(b.snap.DutArray, len(b.snap.DutArray)+1)
	dut := len(b.snap.DutArray)
	b.active[hs] = dut

	if _, ok := b.snap.SiteInfo[pir.Head]; !ok {
		b.snap.SiteInfo[pir.Head] = make([]int, dut-1, dut)
		for i := range b.snap.SiteInfo[pir.Head] {
			b.snap.SiteInfo[pir.Head][i] = selection.NoSite
		}
	}
	for head, sites := range b.snap.SiteInfo {
		site := selection.NoSite
		if head == pir.Head {
			site = int(pir.Site)
		}
		b.snap.SiteInfo[head] = append(sites, site)
	}

	b.snap.DUTs = append(b.snap.DUTs, DUT{Head: pir.Head, Site: pir.Site, Wafer: b.wafer})
}

func (b *builder) closeDUT(prr *stdf.PRRRecord) {
	hs := selection.HeadSite{Head: prr.Head, Site: prr.Site}
	dut, ok := b.active[hs]
	if !ok {
		b.orphans++
		return
	}
	delete(b.active, hs)

	d := &b.snap.DUTs[dut-1]
	d.Index = dut
	d.PartID = prr.PartID
	d.PartTxt = prr.PartTxt
	d.HardBin = prr.HardBin
	d.SoftBin = prr.SoftBin
	d.X = prr.XCoord
	d.Y = prr.YCoord
	d.TestTime = prr.TestT
	d.NumTest = prr.NumTest
	d.PartFlag = prr.PartFlg

	if d.Wafer >= 0 {
		w := &b.snap.Wafers[d.Wafer]
		if w.FirstDUT == 0 {
			w.FirstDUT = dut
		}
		w.LastDUT = dut
	}
}

func (b *builder) pin(pmr *stdf.PMRRecord) {
	if i, ok := b.pins[pmr.Index]; ok {
		// later PMRs of the same pin only add channel names
		p := &b.snap.Pins[i]
		if p.LogNam == "" {
			p.LogNam = pmr.LogNam
		}
		if p.PhyNam == "" {
			p.PhyNam = pmr.PhyNam
		}
	} else {
		b.pins[pmr.Index] = len(b.snap.Pins)
		b.snap.Pins = append(b.snap.Pins, Pin{Index: pmr.Index, ChanTyp: pmr.ChanTyp, LogNam: pmr.LogNam, PhyNam: pmr.PhyNam})
	}

	key := chanKey{hs: selection.HeadSite{Head: pmr.Head, Site: pmr.Site}, index: pmr.Index}
	c := Channel{Head: pmr.Head, Site: pmr.Site, Index: pmr.Index, Name: pmr.ChanNam}
	if i, ok := b.channels[key]; ok {
		b.snap.Channels[i] = c
		return
	}
	b.channels[key] = len(b.snap.Channels)
	b.snap.Channels = append(b.snap.Channels, c)
}

func (b *builder) bin(br *stdf.BinRecord) {
	key := binKey{kind: br.Kind, num: br.Num}
	bin := Bin{Kind: br.Kind, Num: br.Num, Name: br.Name, Pass: br.Pass}
	if i, ok := b.bins[key]; ok {
		// summary records for every site repeat the name, keep the first non-empty one
		if b.snap.Bins[i].Name == "" {
			b.snap.Bins[i] = bin
		}
		return
	}
	b.bins[key] = len(b.snap.Bins)
	b.snap.Bins = append(b.snap.Bins, bin)
}

func (b *builder) closeWafer(wrr *stdf.WRRRecord) {
	if b.wafer < 0 {
		return
	}
	w := &b.snap.Wafers[b.wafer]
	w.FinishT = wrr.FinishT
	w.PartCnt = wrr.PartCnt
	w.GoodCnt = wrr.GoodCnt
	if w.WaferID == "" {
		w.WaferID = wrr.WaferID
	}
	b.wafer = -1
}

func (b *builder) test(rec stdf.TestRecord, offset int64, length uint16) {
	head, site := rec.HeadSite()
	dut, ok := b.active[selection.HeadSite{Head: head, Site: site}]
	if !ok {
		b.orphans++
		return
	}

	id := rec.ID()
	if id.Name == "" {
		id.Name = b.names[id.Number]
	} else if _, ok := b.names[id.Number]; !ok {
		b.names[id.Number] = id.Name
	}

	t, ok := b.tests[id]
	if !ok {
		t = newOffsetRecord(id, rec)
		b.tests[id] = t
		b.snap.Tests = append(b.snap.Tests, t)
	} else {
		t.addOverrides(dut, rec)
	}

	for len(t.Offsets) < dut {
		t.Offsets = append(t.Offsets, -1)
		t.Lengths = append(t.Lengths, 0)
	}
	t.Offsets[dut-1] = offset
	t.Lengths[dut-1] = length

	if !rec.Flag().IsPass() {
		t.FailCount++
	}
	if mpr, ok := rec.(*stdf.MPRRecord); ok {
		t.PinCount = max(t.PinCount, len(mpr.RtnStat))
		t.ResultCount = max(t.ResultCount, len(mpr.RtnRslt))
	}
}

// finish pads every per-DUT array to the final DUT count and replaces the flag-derived fail
// counts of tests that have TSRs.
func (b *builder) finish() {
	n := len(b.snap.DutArray)
	for _, t := range b.snap.Tests {
		for len(t.Offsets) < n {
			t.Offsets = append(t.Offsets, -1)
			t.Lengths = append(t.Lengths, 0)
		}
	}

	merged := make(map[stdf.TestID]*tsrCount, len(b.tsr))
	for id, c := range b.tsr {
		if id.Name == "" {
			id.Name = b.names[id.Number]
		}
		m, ok := merged[id]
		if !ok {
			merged[id] = c
			continue
		}
		m.merge(c)
	}
	for id, c := range merged {
		if t, ok := b.tests[id]; ok {
			t.FailCount = c.count()
		}
	}
}

func newOffsetRecord(id stdf.TestID, rec stdf.TestRecord) *OffsetRecord {
	t := &OffsetRecord{
		TestLocation: stdf.TestLocation{ID: id, Kind: rec.Type()},
		Limits:       limit.NewRaw(),
	}

	switch v := rec.(type) {
	case *stdf.PTRRecord:
		if v.Has(stdf.PTRFieldOptFlag) {
			t.OptFlag = v.OptFlag
		}
		if v.Has(stdf.PTRFieldResScal) {
			t.Limits.Scale, t.Limits.HasScale = v.ResScal, true
		}
		t.Limits.Lo = field(v.Has(stdf.PTRFieldLoLimit), v.LoLimit)
		t.Limits.Hi = field(v.Has(stdf.PTRFieldHiLimit), v.HiLimit)
		t.Limits.LoSpec = field(v.Has(stdf.PTRFieldLoSpec), v.LoSpec)
		t.Limits.HiSpec = field(v.Has(stdf.PTRFieldHiSpec), v.HiSpec)
		t.Limits.Unit = v.Units
	case *stdf.MPRRecord:
		if v.Has(stdf.MPRFieldOptFlag) {
			t.OptFlag = v.OptFlag
		}
		if v.Has(stdf.MPRFieldResScal) {
			t.Limits.Scale, t.Limits.HasScale = v.ResScal, true
		}
		t.Limits.Lo = field(v.Has(stdf.MPRFieldLoLimit), v.LoLimit)
		t.Limits.Hi = field(v.Has(stdf.MPRFieldHiLimit), v.HiLimit)
		t.Limits.LoSpec = field(v.Has(stdf.MPRFieldLoSpec), v.LoSpec)
		t.Limits.HiSpec = field(v.Has(stdf.MPRFieldHiSpec), v.HiSpec)
		t.Limits.Unit = v.Units
		t.RtnIndx = v.RtnIndx
	case *stdf.FTRRecord:
		if v.Has(stdf.FTRFieldOptFlag) {
			t.OptFlag = v.OptFlag
		}
		t.RtnIndx = v.RtnIndx
		t.PgmIndx = v.PgmIndx
		t.VectNam = v.VectNam
	}

	return t
}

// addOverrides records the limits of a later record when they differ from the defaults.
func (t *OffsetRecord) addOverrides(dut int, rec stdf.TestRecord) {
	var (
		optFlag      uint8
		lo, hi       float64
		hasLo, hasHi bool
	)

	switch v := rec.(type) {
	case *stdf.PTRRecord:
		if !v.Has(stdf.PTRFieldOptFlag) {
			return
		}
		optFlag = v.OptFlag
		lo, hasLo = float64(v.LoLimit), v.Has(stdf.PTRFieldLoLimit)
		hi, hasHi = float64(v.HiLimit), v.Has(stdf.PTRFieldHiLimit)
	case *stdf.MPRRecord:
		if !v.Has(stdf.MPRFieldOptFlag) {
			return
		}
		optFlag = v.OptFlag
		lo, hasLo = float64(v.LoLimit), v.Has(stdf.MPRFieldLoLimit)
		hi, hasHi = float64(v.HiLimit), v.Has(stdf.MPRFieldHiLimit)
	default:
		return
	}

	if hasLo && optFlag&limit.NoLoLimit == 0 && lo != t.Limits.Lo {
		if t.LoOverrides == nil {
			t.LoOverrides = make(map[int]float64)
		}
		t.LoOverrides[dut] = lo
	}
	if hasHi && optFlag&limit.NoHiLimit == 0 && hi != t.Limits.Hi {
		if t.HiOverrides == nil {
			t.HiOverrides = make(map[int]float64)
		}
		t.HiOverrides[dut] = hi
	}
}

func field(present bool, v float32) float64 {
	if !present {
		return math.NaN()
	}

	return float64(v)
}

package stdf

// Record is a decoded STDF record. The concrete type is selected by Type():
// *FARRecord, *MIRRecord, *PIRRecord, *PRRRecord, *PTRRecord, *FTRRecord, *MPRRecord, *PMRRecord,
// *BinRecord (HBR and SBR), *WIRRecord, *WRRRecord, *WCRRecord, *TSRRecord, or *RawRecord for
// anything else.
type Record interface {
	Type() RecordType
}

// TestRecord is implemented by the three per-DUT test result records.
type TestRecord interface {
	Record
	// ID returns the test number and TEST_TXT.
	ID() TestID
	// HeadSite returns HEAD_NUM and SITE_NUM.
	HeadSite() (uint8, uint8)
	// Flag returns TEST_FLG.
	Flag() TestFlag
}

// Header is the 4-byte header preceding every record body.
type Header struct {
	Len uint16
	Typ uint8
	Sub uint8
}

// HeaderSize is the encoded size of a Header.
const HeaderSize = 4

func (h Header) Type() RecordType { return NewRecordType(h.Typ, h.Sub) }

// FARRecord is the File Attributes Record.
type FARRecord struct {
	CPUType uint8
	STDFVer uint8
}

func (*FARRecord) Type() RecordType { return FAR }

// MIR text field positions in MIRRecord.Text.
const (
	MIRLotID = iota
	MIRPartTyp
	MIRNodeNam
	MIRTstrTyp
	MIRJobNam
	MIRJobRev
	MIRSblotID
	MIROperNam
	MIRExecTyp
	MIRExecVer
	MIRTestCod
	MIRTstTemp
	MIRUserTxt
	MIRAuxFile
	MIRPkgTyp
	MIRFamlyID
	MIRDateCod
	MIRFacilID
	MIRFloorID
	MIRProcID
	MIROperFrq
	MIRSpecNam
	MIRSpecVer
	MIRFlowID
	MIRSetupID
	MIRDsgnRev
	MIREngID
	MIRRomCod
	MIRSerlNum
	MIRSuprNam
	NumMIRText
)

// MIRTextFields holds the STDF names of MIRRecord.Text entries.
var MIRTextFields = [NumMIRText]string{
	"LOT_ID", "PART_TYP", "NODE_NAM", "TSTR_TYP", "JOB_NAM", "JOB_REV", "SBLOT_ID", "OPER_NAM",
	"EXEC_TYP", "EXEC_VER", "TEST_COD", "TST_TEMP", "USER_TXT", "AUX_FILE", "PKG_TYP", "FAMLY_ID",
	"DATE_COD", "FACIL_ID", "FLOOR_ID", "PROC_ID", "OPER_FRQ", "SPEC_NAM", "SPEC_VER", "FLOW_ID",
	"SETUP_ID", "DSGN_REV", "ENG_ID", "ROM_COD", "SERL_NUM", "SUPR_NAM",
}

// MIRDescriptions maps MIR field names to human readable descriptions.
var MIRDescriptions = map[string]string{
	"BYTE_ORD": "Byte Order", "SETUP_T": "Setup Time", "START_T": "Start Time", "STAT_NUM": "Station Number",
	"MODE_COD": "Test Mode Code", "RTST_COD": "Retest Code", "PROT_COD": "Protection Code",
	"BURN_TIM": "Burn-in Time", "CMOD_COD": "Command Mode Code", "LOT_ID": "Lot ID", "PART_TYP": "Product ID",
	"NODE_NAM": "Node Name", "TSTR_TYP": "Tester Type", "JOB_NAM": "Job Name", "JOB_REV": "Job Revision",
	"SBLOT_ID": "Sublot ID", "OPER_NAM": "Operator ID", "EXEC_TYP": "Tester Software Type",
	"EXEC_VER": "Tester Software Version", "TEST_COD": "Step ID", "TST_TEMP": "Test Temperature",
	"USER_TXT": "User Text", "AUX_FILE": "Auxiliary File Name", "PKG_TYP": "Package Type",
	"FAMLY_ID": "Family ID", "DATE_COD": "Date Code", "FACIL_ID": "Facility ID", "FLOOR_ID": "Floor ID",
	"PROC_ID": "Process ID", "OPER_FRQ": "Operation Frequency", "SPEC_NAM": "Test Spec Name",
	"SPEC_VER": "Test Spec Version", "FLOW_ID": "Flow ID", "SETUP_ID": "Setup ID",
	"DSGN_REV": "Design Revision", "ENG_ID": "Engineer Lot ID", "ROM_COD": "ROM Code ID",
	"SERL_NUM": "Serial Number", "SUPR_NAM": "Supervisor ID",
}

// MIRRecord is the Master Information Record.
type MIRRecord struct {
	SetupT  uint32
	StartT  uint32
	StatNum uint8
	ModeCod byte
	RtstCod byte
	ProtCod byte
	BurnTim uint16
	CmodCod byte
	Text    [NumMIRText]string
}

func (*MIRRecord) Type() RecordType { return MIR }

// Field returns the text of the named MIR Cn field, or "" when the name is unknown.
func (m *MIRRecord) Field(name string) string {
	for i, n := range MIRTextFields {
		if n == name {
			return m.Text[i]
		}
	}
	return ""
}

// PIRRecord is the Part Information Record, marking the start of a DUT.
type PIRRecord struct {
	Head uint8
	Site uint8
}

func (*PIRRecord) Type() RecordType { return PIR }

// PRRRecord is the Part Results Record, marking the end of a DUT.
type PRRRecord struct {
	Head    uint8
	Site    uint8
	PartFlg uint8
	NumTest uint16
	HardBin uint16
	SoftBin uint16
	XCoord  int16
	YCoord  int16
	TestT   uint32
	PartID  string
	PartTxt string
	PartFix []byte
}

func (*PRRRecord) Type() RecordType { return PRR }

// Failed reports whether PART_FLG marks the part as failed. Bit 4 set means no pass/fail
// indication, in which case bit 3 is ignored.
func (p *PRRRecord) Failed() bool {
	return p.PartFlg&0b00010000 == 0 && p.PartFlg&0b00001000 != 0
}

// PMRRecord is the Pin Map Record.
type PMRRecord struct {
	Index   uint16
	ChanTyp uint16
	ChanNam string
	PhyNam  string
	LogNam  string
	Head    uint8
	Site    uint8
}

func (*PMRRecord) Type() RecordType { return PMR }

// BinRecord is a Hardware (HBR) or Software (SBR) Bin Record.
type BinRecord struct {
	Kind  RecordType
	Head  uint8
	Site  uint8
	Num   uint16
	Count uint32
	Pass  byte
	Name  string
}

func (b *BinRecord) Type() RecordType { return b.Kind }

// WIRRecord is the Wafer Information Record.
type WIRRecord struct {
	Head    uint8
	SiteGrp uint8
	StartT  uint32
	WaferID string
}

func (*WIRRecord) Type() RecordType { return WIR }

// WRRRecord is the Wafer Results Record.
type WRRRecord struct {
	Head    uint8
	SiteGrp uint8
	FinishT uint32
	PartCnt uint32
	RtstCnt uint32
	AbrtCnt uint32
	GoodCnt uint32
	FuncCnt uint32
	WaferID string
	FabwfID string
	FrameID string
	MaskID  string
	UsrDesc string
	ExcDesc string
}

func (*WRRRecord) Type() RecordType { return WRR }

// MissingCount is the value of a TSR count field that the tester did not fill in.
const MissingCount uint32 = 4294967295

// TSRRecord is the Test Synopsis Record of one test on one site, or on all sites when Head
// is 255.
type TSRRecord struct {
	Head    uint8
	Site    uint8
	TestTyp byte
	TestNum uint32
	ExecCnt uint32
	FailCnt uint32
	AlrmCnt uint32
	TestNam string
	SeqName string
	TestLbl string
	OptFlag uint8
	TestTim float32
	TestMin float32
	TestMax float32
	TstSums float32
	TstSqrs float32
}

func (*TSRRecord) Type() RecordType { return TSR }

// Summary reports whether the record sums up all sites.
func (t *TSRRecord) Summary() bool { return t.Head == 255 }

// HasFailCount reports whether FailCnt holds a count.
func (t *TSRRecord) HasFailCount() bool { return t.FailCnt != MissingCount }

// WCRRecord is the Wafer Configuration Record.
type WCRRecord struct {
	WafrSiz float32
	DieHt   float32
	DieWid  float32
	WfUnits uint8
	WfFlat  byte
	CenterX int16
	CenterY int16
	PosX    byte
	PosY    byte
}

func (*WCRRecord) Type() RecordType { return WCR }

// PTR field positions, used with PTRRecord.Has.
const (
	PTRFieldTestNum = iota
	PTRFieldHead
	PTRFieldSite
	PTRFieldTestFlg
	PTRFieldParmFlg
	PTRFieldResult
	PTRFieldTestTxt
	PTRFieldAlarmID
	PTRFieldOptFlag
	PTRFieldResScal
	PTRFieldLlmScal
	PTRFieldHlmScal
	PTRFieldLoLimit
	PTRFieldHiLimit
	PTRFieldUnits
	PTRFieldCResFmt
	PTRFieldCLlmFmt
	PTRFieldCHlmFmt
	PTRFieldLoSpec
	PTRFieldHiSpec
	numPTRFields
)

// PTRRecord is the Parametric Test Record.
type PTRRecord struct {
	TestNum uint32
	Head    uint8
	Site    uint8
	TestFlg uint8
	ParmFlg uint8
	Result  float32
	TestTxt string
	AlarmID string
	OptFlag uint8
	ResScal int8
	LlmScal int8
	HlmScal int8
	LoLimit float32
	HiLimit float32
	Units   string
	CResFmt string
	CLlmFmt string
	CHlmFmt string
	LoSpec  float32
	HiSpec  float32

	// Fields is the number of fields present in the record body. Zero means all fields,
	// which is also how Writer treats it.
	Fields int
}

func (*PTRRecord) Type() RecordType           { return PTR }
func (p *PTRRecord) ID() TestID               { return TestID{Number: p.TestNum, Name: p.TestTxt} }
func (p *PTRRecord) HeadSite() (uint8, uint8) { return p.Head, p.Site }
func (p *PTRRecord) Flag() TestFlag           { return TestFlag(p.TestFlg) }

// Has reports whether the field at position field was present.
func (p *PTRRecord) Has(field int) bool { return p.Fields == 0 || field < p.Fields }

// MPR field positions, used with MPRRecord.Has.
const (
	MPRFieldTestNum = iota
	MPRFieldHead
	MPRFieldSite
	MPRFieldTestFlg
	MPRFieldParmFlg
	MPRFieldRtnIcnt
	MPRFieldRsltCnt
	MPRFieldRtnStat
	MPRFieldRtnRslt
	MPRFieldTestTxt
	MPRFieldAlarmID
	MPRFieldOptFlag
	MPRFieldResScal
	MPRFieldLlmScal
	MPRFieldHlmScal
	MPRFieldLoLimit
	MPRFieldHiLimit
	MPRFieldStartIn
	MPRFieldIncrIn
	MPRFieldRtnIndx
	MPRFieldUnits
	MPRFieldUnitsIn
	MPRFieldCResFmt
	MPRFieldCLlmFmt
	MPRFieldCHlmFmt
	MPRFieldLoSpec
	MPRFieldHiSpec
	numMPRFields
)

// MPRRecord is the Multiple-Result Parametric Record.
type MPRRecord struct {
	TestNum uint32
	Head    uint8
	Site    uint8
	TestFlg uint8
	ParmFlg uint8
	RtnStat []uint8
	RtnRslt []float32
	TestTxt string
	AlarmID string
	OptFlag uint8
	ResScal int8
	LlmScal int8
	HlmScal int8
	LoLimit float32
	HiLimit float32
	StartIn float32
	IncrIn  float32
	RtnIndx []uint16
	Units   string
	UnitsIn string
	CResFmt string
	CLlmFmt string
	CHlmFmt string
	LoSpec  float32
	HiSpec  float32

	Fields int
}

func (*MPRRecord) Type() RecordType           { return MPR }
func (m *MPRRecord) ID() TestID               { return TestID{Number: m.TestNum, Name: m.TestTxt} }
func (m *MPRRecord) HeadSite() (uint8, uint8) { return m.Head, m.Site }
func (m *MPRRecord) Flag() TestFlag           { return TestFlag(m.TestFlg) }
func (m *MPRRecord) Has(field int) bool       { return m.Fields == 0 || field < m.Fields }

// FTR field positions, used with FTRRecord.Has.
const (
	FTRFieldTestNum = iota
	FTRFieldHead
	FTRFieldSite
	FTRFieldTestFlg
	FTRFieldOptFlag
	FTRFieldCyclCnt
	FTRFieldRelVadr
	FTRFieldReptCnt
	FTRFieldNumFail
	FTRFieldXFailAd
	FTRFieldYFailAd
	FTRFieldVectOff
	FTRFieldRtnIcnt
	FTRFieldPgmIcnt
	FTRFieldRtnIndx
	FTRFieldRtnStat
	FTRFieldPgmIndx
	FTRFieldPgmStat
	FTRFieldFailPin
	FTRFieldVectNam
	FTRFieldTimeSet
	FTRFieldOpCode
	FTRFieldTestTxt
	FTRFieldAlarmID
	FTRFieldProgTxt
	FTRFieldRsltTxt
	FTRFieldPatgNum
	FTRFieldSpinMap
	numFTRFields
)

// FTRRecord is the Functional Test Record.
type FTRRecord struct {
	TestNum uint32
	Head    uint8
	Site    uint8
	TestFlg uint8
	OptFlag uint8
	CyclCnt uint32
	RelVadr uint32
	ReptCnt uint32
	NumFail uint32
	XFailAd int32
	YFailAd int32
	VectOff int16
	RtnIndx []uint16
	RtnStat []uint8
	PgmIndx []uint16
	PgmStat []uint8
	FailPin []byte
	VectNam string
	TimeSet string
	OpCode  string
	TestTxt string
	AlarmID string
	ProgTxt string
	RsltTxt string
	PatgNum uint8
	SpinMap []byte

	Fields int
}

func (*FTRRecord) Type() RecordType           { return FTR }
func (f *FTRRecord) ID() TestID               { return TestID{Number: f.TestNum, Name: f.TestTxt} }
func (f *FTRRecord) HeadSite() (uint8, uint8) { return f.Head, f.Site }
func (f *FTRRecord) Flag() TestFlag           { return TestFlag(f.TestFlg) }
func (f *FTRRecord) Has(field int) bool       { return f.Fields == 0 || field < f.Fields }

// RawRecord holds the undecoded body of a record type this package does not model.
type RawRecord struct {
	Header Header
	Body   []byte
}

func (r *RawRecord) Type() RecordType { return r.Header.Type() }

var (
	_ TestRecord = (*PTRRecord)(nil)
	_ TestRecord = (*MPRRecord)(nil)
	_ TestRecord = (*FTRRecord)(nil)
)

package stdf

import (
	"fmt"
)

// DecodeHeader decodes a 4-byte record header.
func DecodeHeader(b []byte, order Endianness) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("invalid record header length: %d", len(b))
	}

	return Header{
		Len: order.ByteOrder().Uint16(b),
		Typ: b[2],
		Sub: b[3],
	}, nil
}

// DecodeRecord decodes the body of a record with header h.
//
// Trailing optional fields may be absent; test records report the number of fields present.
// A body that ends inside a required field yields a *ParseError wrapping ErrUnexpectedEOR.
// Record types without a typed model are returned as *RawRecord.
func DecodeRecord(h Header, body []byte, order Endianness) (Record, error) {
	r := getFieldReader(body, order)
	defer putFieldReader(r)

	var (
		rec      Record
		required int
	)

	switch h.Type() {
	case FAR:
		rec, required = decodeFAR(r), 2
	case MIR:
		rec, required = decodeMIR(r), 9
	case PIR:
		rec, required = &PIRRecord{Head: r.u1(), Site: r.u1()}, 2
	case PRR:
		rec, required = decodePRR(r), 9
	case PMR:
		rec, required = decodePMR(r), 2
	case HBR, SBR:
		rec, required = decodeBin(r, h.Type()), 5
	case WIR:
		rec, required = decodeWIR(r), 3
	case WRR:
		rec, required = decodeWRR(r), 4
	case WCR:
		rec, required = decodeWCR(r), 0
	case TSR:
		rec, required = decodeTSR(r), 6
	case PTR:
		rec, required = decodePTR(r), PTRFieldResult+1
	case MPR:
		rec, required = decodeMPR(r), MPRFieldRsltCnt+1
	case FTR:
		rec, required = decodeFTR(r), FTRFieldTestFlg+1
	default:
		raw := make([]byte, len(body))
		copy(raw, body)
		return &RawRecord{Header: h, Body: raw}, nil
	}

	if r.fields < required {
		return nil, NewParseError(fmt.Sprintf("decode %s", h.Type()), 0,
			fmt.Errorf("%w: %d of %d required fields", ErrUnexpectedEOR, r.fields, required))
	}

	return rec, nil
}

func decodeFAR(r *fieldReader) *FARRecord {
	return &FARRecord{CPUType: r.u1(), STDFVer: r.u1()}
}

func decodeMIR(r *fieldReader) *MIRRecord {
	m := &MIRRecord{
		SetupT:  r.u4(),
		StartT:  r.u4(),
		StatNum: r.u1(),
		ModeCod: r.c1(),
		RtstCod: r.c1(),
		ProtCod: r.c1(),
		BurnTim: r.u2(),
		CmodCod: r.c1(),
	}
	for i := range m.Text {
		m.Text[i] = r.cn()
	}

	return m
}

func decodePRR(r *fieldReader) *PRRRecord {
	return &PRRRecord{
		Head:    r.u1(),
		Site:    r.u1(),
		PartFlg: r.u1(),
		NumTest: r.u2(),
		HardBin: r.u2(),
		SoftBin: r.u2(),
		XCoord:  r.i2(),
		YCoord:  r.i2(),
		TestT:   r.u4(),
		PartID:  r.cn(),
		PartTxt: r.cn(),
		PartFix: r.bn(),
	}
}

func decodePMR(r *fieldReader) *PMRRecord {
	return &PMRRecord{
		Index:   r.u2(),
		ChanTyp: r.u2(),
		ChanNam: r.cn(),
		PhyNam:  r.cn(),
		LogNam:  r.cn(),
		Head:    r.u1(),
		Site:    r.u1(),
	}
}

func decodeBin(r *fieldReader, kind RecordType) *BinRecord {
	return &BinRecord{
		Kind:  kind,
		Head:  r.u1(),
		Site:  r.u1(),
		Num:   r.u2(),
		Count: r.u4(),
		Pass:  r.c1(),
		Name:  r.cn(),
	}
}

func decodeWIR(r *fieldReader) *WIRRecord {
	return &WIRRecord{Head: r.u1(), SiteGrp: r.u1(), StartT: r.u4(), WaferID: r.cn()}
}

func decodeWRR(r *fieldReader) *WRRRecord {
	return &WRRRecord{
		Head:    r.u1(),
		SiteGrp: r.u1(),
		FinishT: r.u4(),
		PartCnt: r.u4(),
		RtstCnt: r.u4(),
		AbrtCnt: r.u4(),
		GoodCnt: r.u4(),
		FuncCnt: r.u4(),
		WaferID: r.cn(),
		FabwfID: r.cn(),
		FrameID: r.cn(),
		MaskID:  r.cn(),
		UsrDesc: r.cn(),
		ExcDesc: r.cn(),
	}
}

func decodeTSR(r *fieldReader) *TSRRecord {
	return &TSRRecord{
		Head:    r.u1(),
		Site:    r.u1(),
		TestTyp: r.c1(),
		TestNum: r.u4(),
		ExecCnt: r.u4(),
		FailCnt: r.u4(),
		AlrmCnt: r.u4(),
		TestNam: r.cn(),
		SeqName: r.cn(),
		TestLbl: r.cn(),
		OptFlag: r.u1(),
		TestTim: r.r4(),
		TestMin: r.r4(),
		TestMax: r.r4(),
		TstSums: r.r4(),
		TstSqrs: r.r4(),
	}
}

func decodeWCR(r *fieldReader) *WCRRecord {
	return &WCRRecord{
		WafrSiz: r.r4(),
		DieHt:   r.r4(),
		DieWid:  r.r4(),
		WfUnits: r.u1(),
		WfFlat:  r.c1(),
		CenterX: r.i2(),
		CenterY: r.i2(),
		PosX:    r.c1(),
		PosY:    r.c1(),
	}
}

func decodePTR(r *fieldReader) *PTRRecord {
	p := &PTRRecord{
		TestNum: r.u4(),
		Head:    r.u1(),
		Site:    r.u1(),
		TestFlg: r.u1(),
		ParmFlg: r.u1(),
		Result:  r.r4(),
		TestTxt: r.cn(),
		AlarmID: r.cn(),
		OptFlag: r.u1(),
		ResScal: r.i1(),
		LlmScal: r.i1(),
		HlmScal: r.i1(),
		LoLimit: r.r4(),
		HiLimit: r.r4(),
		Units:   r.cn(),
		CResFmt: r.cn(),
		CLlmFmt: r.cn(),
		CHlmFmt: r.cn(),
		LoSpec:  r.r4(),
		HiSpec:  r.r4(),
	}
	p.Fields = r.fields

	return p
}

func decodeMPR(r *fieldReader) *MPRRecord {
	m := &MPRRecord{
		TestNum: r.u4(),
		Head:    r.u1(),
		Site:    r.u1(),
		TestFlg: r.u1(),
		ParmFlg: r.u1(),
	}
	rtnIcnt := int(r.u2())
	rsltCnt := int(r.u2())
	m.RtnStat = r.kxN1(rtnIcnt)
	m.RtnRslt = r.kxR4(rsltCnt)
	m.TestTxt = r.cn()
	m.AlarmID = r.cn()
	m.OptFlag = r.u1()
	m.ResScal = r.i1()
	m.LlmScal = r.i1()
	m.HlmScal = r.i1()
	m.LoLimit = r.r4()
	m.HiLimit = r.r4()
	m.StartIn = r.r4()
	m.IncrIn = r.r4()
	m.RtnIndx = r.kxU2(rtnIcnt)
	m.Units = r.cn()
	m.UnitsIn = r.cn()
	m.CResFmt = r.cn()
	m.CLlmFmt = r.cn()
	m.CHlmFmt = r.cn()
	m.LoSpec = r.r4()
	m.HiSpec = r.r4()
	m.Fields = r.fields

	return m
}

func decodeFTR(r *fieldReader) *FTRRecord {
	f := &FTRRecord{
		TestNum: r.u4(),
		Head:    r.u1(),
		Site:    r.u1(),
		TestFlg: r.u1(),
		OptFlag: r.u1(),
		CyclCnt: r.u4(),
		RelVadr: r.u4(),
		ReptCnt: r.u4(),
		NumFail: r.u4(),
		XFailAd: r.i4(),
		YFailAd: r.i4(),
		VectOff: r.i2(),
	}
	rtnIcnt := int(r.u2())
	pgmIcnt := int(r.u2())
	f.RtnIndx = r.kxU2(rtnIcnt)
	f.RtnStat = r.kxN1(rtnIcnt)
	f.PgmIndx = r.kxU2(pgmIcnt)
	f.PgmStat = r.kxN1(pgmIcnt)
	f.FailPin = r.dn()
	f.VectNam = r.cn()
	f.TimeSet = r.cn()
	f.OpCode = r.cn()
	f.TestTxt = r.cn()
	f.AlarmID = r.cn()
	f.ProgTxt = r.cn()
	f.RsltTxt = r.cn()
	f.PatgNum = r.u1()
	f.SpinMap = r.dn()
	f.Fields = r.fields

	return f
}

package stdf

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Writer encodes STDF records to an io.Writer.
//
// Test records honour their Fields value: a positive count writes only the leading fields,
// producing a record with omitted optional fields.
type Writer struct {
	w      io.Writer
	order  Endianness
	offset int64
}

// NewWriter creates a Writer using byte order order. AutoEndian writes little endian.
func NewWriter(w io.Writer, order Endianness) *Writer {
	if order == AutoEndian {
		order = LittleEndian
	}

	return &Writer{w: w, order: order}
}

// Offset returns the number of bytes written so far, which is the offset of the next record.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Write encodes rec and returns the offset of its header and the body length.
func (w *Writer) Write(rec Record) (int64, uint16, error) {
	body, err := EncodeBody(rec, w.order)
	if err != nil {
		return 0, 0, err
	}
	if len(body) > math.MaxUint16 {
		return 0, 0, fmt.Errorf("record %s body too long: %d", rec.Type(), len(body))
	}

	hdr := make([]byte, HeaderSize, HeaderSize+len(body))
	w.order.ByteOrder().PutUint16(hdr, uint16(len(body))) //nolint:gosec
	hdr[2] = rec.Type().Typ()
	hdr[3] = rec.Type().Sub()

	offset := w.offset
	n, err := w.w.Write(append(hdr, body...))
	w.offset += int64(n)
	if err != nil {
		return offset, 0, err
	}

	return offset, uint16(len(body)), nil //nolint:gosec
}

// WriteFAR writes the File Attributes Record announcing the writer's byte order.
func (w *Writer) WriteFAR() error {
	_, _, err := w.Write(&FARRecord{CPUType: w.order.CPUType(), STDFVer: 4})
	return err
}

// EncodeBody encodes the body of rec without its header.
func EncodeBody(rec Record, order Endianness) ([]byte, error) {
	switch v := rec.(type) {
	case *FARRecord:
		fw := newFieldWriter(order, 0)
		fw.u1(v.CPUType)
		fw.u1(v.STDFVer)
		return fw.buf, nil
	case *MIRRecord:
		return encodeMIR(v, order), nil
	case *PIRRecord:
		fw := newFieldWriter(order, 0)
		fw.u1(v.Head)
		fw.u1(v.Site)
		return fw.buf, nil
	case *PRRRecord:
		return encodePRR(v, order), nil
	case *PMRRecord:
		fw := newFieldWriter(order, 0)
		fw.u2(v.Index)
		fw.u2(v.ChanTyp)
		fw.cn(v.ChanNam)
		fw.cn(v.PhyNam)
		fw.cn(v.LogNam)
		fw.u1(v.Head)
		fw.u1(v.Site)
		return fw.buf, nil
	case *BinRecord:
		fw := newFieldWriter(order, 0)
		fw.u1(v.Head)
		fw.u1(v.Site)
		fw.u2(v.Num)
		fw.u4(v.Count)
		fw.u1(v.Pass)
		fw.cn(v.Name)
		return fw.buf, nil
	case *WIRRecord:
		fw := newFieldWriter(order, 0)
		fw.u1(v.Head)
		fw.u1(v.SiteGrp)
		fw.u4(v.StartT)
		fw.cn(v.WaferID)
		return fw.buf, nil
	case *WRRRecord:
		return encodeWRR(v, order), nil
	case *WCRRecord:
		fw := newFieldWriter(order, 0)
		fw.r4(v.WafrSiz)
		fw.r4(v.DieHt)
		fw.r4(v.DieWid)
		fw.u1(v.WfUnits)
		fw.u1(v.WfFlat)
		fw.i2(v.CenterX)
		fw.i2(v.CenterY)
		fw.u1(v.PosX)
		fw.u1(v.PosY)
		return fw.buf, nil
	case *TSRRecord:
		return encodeTSR(v, order), nil
	case *PTRRecord:
		return encodePTR(v, order), nil
	case *MPRRecord:
		return encodeMPR(v, order)
	case *FTRRecord:
		return encodeFTR(v, order)
	case *RawRecord:
		return v.Body, nil
	}

	return nil, fmt.Errorf("cannot encode record type %T", rec)
}

func encodeMIR(v *MIRRecord, order Endianness) []byte {
	fw := newFieldWriter(order, 0)
	fw.u4(v.SetupT)
	fw.u4(v.StartT)
	fw.u1(v.StatNum)
	fw.u1(v.ModeCod)
	fw.u1(v.RtstCod)
	fw.u1(v.ProtCod)
	fw.u2(v.BurnTim)
	fw.u1(v.CmodCod)
	for _, s := range v.Text {
		fw.cn(s)
	}

	return fw.buf
}

func encodePRR(v *PRRRecord, order Endianness) []byte {
	fw := newFieldWriter(order, 0)
	fw.u1(v.Head)
	fw.u1(v.Site)
	fw.u1(v.PartFlg)
	fw.u2(v.NumTest)
	fw.u2(v.HardBin)
	fw.u2(v.SoftBin)
	fw.i2(v.XCoord)
	fw.i2(v.YCoord)
	fw.u4(v.TestT)
	fw.cn(v.PartID)
	fw.cn(v.PartTxt)
	fw.bn(v.PartFix)

	return fw.buf
}

func encodeWRR(v *WRRRecord, order Endianness) []byte {
	fw := newFieldWriter(order, 0)
	fw.u1(v.Head)
	fw.u1(v.SiteGrp)
	fw.u4(v.FinishT)
	fw.u4(v.PartCnt)
	fw.u4(v.RtstCnt)
	fw.u4(v.AbrtCnt)
	fw.u4(v.GoodCnt)
	fw.u4(v.FuncCnt)
	fw.cn(v.WaferID)
	fw.cn(v.FabwfID)
	fw.cn(v.FrameID)
	fw.cn(v.MaskID)
	fw.cn(v.UsrDesc)
	fw.cn(v.ExcDesc)

	return fw.buf
}

func encodeTSR(v *TSRRecord, order Endianness) []byte {
	fw := newFieldWriter(order, 0)
	fw.u1(v.Head)
	fw.u1(v.Site)
	fw.u1(v.TestTyp)
	fw.u4(v.TestNum)
	fw.u4(v.ExecCnt)
	fw.u4(v.FailCnt)
	fw.u4(v.AlrmCnt)
	fw.cn(v.TestNam)
	fw.cn(v.SeqName)
	fw.cn(v.TestLbl)
	fw.u1(v.OptFlag)
	fw.r4(v.TestTim)
	fw.r4(v.TestMin)
	fw.r4(v.TestMax)
	fw.r4(v.TstSums)
	fw.r4(v.TstSqrs)

	return fw.buf
}

func encodePTR(v *PTRRecord, order Endianness) []byte {
	fw := newFieldWriter(order, v.Fields)
	fw.u4(v.TestNum)
	fw.u1(v.Head)
	fw.u1(v.Site)
	fw.u1(v.TestFlg)
	fw.u1(v.ParmFlg)
	fw.r4(v.Result)
	fw.cn(v.TestTxt)
	fw.cn(v.AlarmID)
	fw.u1(v.OptFlag)
	fw.i1(v.ResScal)
	fw.i1(v.LlmScal)
	fw.i1(v.HlmScal)
	fw.r4(v.LoLimit)
	fw.r4(v.HiLimit)
	fw.cn(v.Units)
	fw.cn(v.CResFmt)
	fw.cn(v.CLlmFmt)
	fw.cn(v.CHlmFmt)
	fw.r4(v.LoSpec)
	fw.r4(v.HiSpec)

	return fw.buf
}

var errCountMismatch = errors.New("array lengths do not match their count field")

func encodeMPR(v *MPRRecord, order Endianness) ([]byte, error) {
	if len(v.RtnIndx) > 0 && len(v.RtnIndx) != len(v.RtnStat) {
		return nil, fmt.Errorf("MPR RTN_INDX/RTN_STAT: %w", errCountMismatch)
	}

	fw := newFieldWriter(order, v.Fields)
	fw.u4(v.TestNum)
	fw.u1(v.Head)
	fw.u1(v.Site)
	fw.u1(v.TestFlg)
	fw.u1(v.ParmFlg)
	fw.u2(uint16(len(v.RtnStat))) //nolint:gosec
	fw.u2(uint16(len(v.RtnRslt))) //nolint:gosec
	fw.kxN1(v.RtnStat)
	fw.kxR4(v.RtnRslt)
	fw.cn(v.TestTxt)
	fw.cn(v.AlarmID)
	fw.u1(v.OptFlag)
	fw.i1(v.ResScal)
	fw.i1(v.LlmScal)
	fw.i1(v.HlmScal)
	fw.r4(v.LoLimit)
	fw.r4(v.HiLimit)
	fw.r4(v.StartIn)
	fw.r4(v.IncrIn)
	fw.kxU2(padU2(v.RtnIndx, len(v.RtnStat)))
	fw.cn(v.Units)
	fw.cn(v.UnitsIn)
	fw.cn(v.CResFmt)
	fw.cn(v.CLlmFmt)
	fw.cn(v.CHlmFmt)
	fw.r4(v.LoSpec)
	fw.r4(v.HiSpec)

	return fw.buf, nil
}

func encodeFTR(v *FTRRecord, order Endianness) ([]byte, error) {
	if len(v.RtnIndx) != len(v.RtnStat) {
		return nil, fmt.Errorf("FTR RTN_INDX/RTN_STAT: %w", errCountMismatch)
	}
	if len(v.PgmIndx) != len(v.PgmStat) {
		return nil, fmt.Errorf("FTR PGM_INDX/PGM_STAT: %w", errCountMismatch)
	}

	fw := newFieldWriter(order, v.Fields)
	fw.u4(v.TestNum)
	fw.u1(v.Head)
	fw.u1(v.Site)
	fw.u1(v.TestFlg)
	fw.u1(v.OptFlag)
	fw.u4(v.CyclCnt)
	fw.u4(v.RelVadr)
	fw.u4(v.ReptCnt)
	fw.u4(v.NumFail)
	fw.i4(v.XFailAd)
	fw.i4(v.YFailAd)
	fw.i2(v.VectOff)
	fw.u2(uint16(len(v.RtnIndx))) //nolint:gosec
	fw.u2(uint16(len(v.PgmIndx))) //nolint:gosec
	fw.kxU2(v.RtnIndx)
	fw.kxN1(v.RtnStat)
	fw.kxU2(v.PgmIndx)
	fw.kxN1(v.PgmStat)
	fw.dn(v.FailPin)
	fw.cn(v.VectNam)
	fw.cn(v.TimeSet)
	fw.cn(v.OpCode)
	fw.cn(v.TestTxt)
	fw.cn(v.AlarmID)
	fw.cn(v.ProgTxt)
	fw.cn(v.RsltTxt)
	fw.u1(v.PatgNum)
	fw.dn(v.SpinMap)

	return fw.buf, nil
}

// padU2 returns s extended with zeros to length n.
func padU2(s []uint16, n int) []uint16 {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]uint16, n)
	copy(out, s)

	return out
}

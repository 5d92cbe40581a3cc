// Package receipt assembles the printable transfer receipt payload. It is a
// pure function over a successful transfer's outputs; rendering,
// pagination, and physical printing stay external.
package receipt

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is the data a caller needs to render a transfer receipt.
type Receipt struct {
	DocumentNo  string
	ItemKey     string
	Location    string
	SourceBin   string
	DestBin     string
	LotNo       string
	OnHand      decimal.Decimal // pre-transfer on_hand
	Qty         decimal.Decimal
	LotStatus   string
	Date        string // DD-MM-YY
	Remark      string
	Reference   string
}

// Inputs bundles the fields Project needs from a completed transfer and the
// resolved lot data, so the function signature doesn't grow every time a
// caller needs one more field threaded through.
type Inputs struct {
	DocumentNo            string
	ItemKey               string
	Location              string
	SourceBin             string
	DestBin               string
	LotNo                 string
	PreTransferOnHand     decimal.Decimal
	Qty                   decimal.Decimal
	SourceLotStatus       string
	DestinationLotStatus  string
	Timestamp             time.Time
	Remark                string
	Reference             string
}

// Project builds the Receipt for a successful transfer. If the source and
// destination lot statuses agree, LotStatus is that single character;
// otherwise it is "<source> - <destination>".
func Project(in Inputs) Receipt {
	status := in.SourceLotStatus
	if in.SourceLotStatus != in.DestinationLotStatus {
		status = fmt.Sprintf("%s - %s", in.SourceLotStatus, in.DestinationLotStatus)
	}

	return Receipt{
		DocumentNo: in.DocumentNo,
		ItemKey:    in.ItemKey,
		Location:   in.Location,
		SourceBin:  in.SourceBin,
		DestBin:    in.DestBin,
		LotNo:      in.LotNo,
		OnHand:     in.PreTransferOnHand,
		Qty:        in.Qty.Round(3),
		LotStatus:  status,
		Date:       in.Timestamp.Format("02-01-06"),
		Remark:     in.Remark,
		Reference:  in.Reference,
	}
}

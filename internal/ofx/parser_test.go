package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centavobot/centavo/internal/model"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260101120000[0:GMT]
<DTEND>20260131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026011501
<NAME>PADARIA CENTRAL
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260120120000[0:GMT]
<TRNAMT>3000.00
<FITID>2026012001
<NAME>SALARY ACME LTDA
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20260131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	parser := NewParser()

	entries, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX), "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	expense := entries[0]
	assert.Equal(t, "u1", expense.UserID)
	assert.Equal(t, model.DirectionExpense, expense.Direction)
	assert.Equal(t, 25.50, expense.Amount)
	assert.Equal(t, "PADARIA CENTRAL", expense.Description)
	assert.Equal(t, "bank", expense.PaymentMethod)
	assert.NotEmpty(t, expense.ID)

	income := entries[1]
	assert.Equal(t, model.DirectionIncome, income.Direction)
	assert.Equal(t, 3000.0, income.Amount)
}

func TestParseFileRejectsGarbage(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseFile(context.Background(), strings.NewReader("not an ofx file"), "u1")
	require.Error(t, err)
}

func TestPreprocessOFX(t *testing.T) {
	parser := NewParser()

	t.Run("uppercases severity", func(t *testing.T) {
		fixed := parser.preprocessOFX("<SEVERITY>Info</SEVERITY>")
		assert.Equal(t, "<SEVERITY>INFO</SEVERITY>", fixed)
	})

	t.Run("closes dangling tags", func(t *testing.T) {
		fixed := parser.preprocessOFX("<OFX>\n<TRNAMT\n</OFX>")
		assert.Contains(t, fixed, "<TRNAMT>")
	})

	t.Run("trims leading blank lines", func(t *testing.T) {
		fixed := parser.preprocessOFX("\n\n  OFXHEADER:100")
		assert.True(t, strings.HasPrefix(fixed, "OFXHEADER"))
	})
}

func TestInferCategory(t *testing.T) {
	assert.Equal(t, "interest", inferCategory("INT"))
	assert.Equal(t, "fees", inferCategory("FEE"))
	assert.Equal(t, "cash", inferCategory("ATM"))
	assert.Equal(t, "uncategorized", inferCategory("DEBIT"))
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("DEBIT"))
	assert.True(t, isGenericDescription("card purchase"))
	assert.False(t, isGenericDescription("PADARIA CENTRAL"))
}

package masters_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/masters"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

func TestSplitAddress(t *testing.T) {
	short := "12 MG Road\nPune"
	line1, line2 := masters.SplitAddress(short)
	assert.Equal(t, short, line1)
	assert.Empty(t, line2)

	long := strings.Repeat("a", 139) + " " + strings.Repeat("b", 30)
	line1, line2 = masters.SplitAddress(long)
	assert.Equal(t, strings.Repeat("a", 139), line1)
	assert.Equal(t, strings.Repeat("b", 30), line2)

	// limit counts characters, not bytes
	multibyte := strings.Repeat("₹", 150)
	line1, line2 = masters.SplitAddress(multibyte)
	assert.Equal(t, 140, len([]rune(line1)))
	assert.Equal(t, 10, len([]rune(line2)))
}

func TestExtractParties(t *testing.T) {
	root, err := tallyxml.Parse(`<ENVELOPE>
<LEDGER NAME="Acme"><PARENT>Sundry Debtors</PARENT><INCOMETAXNUMBER>AAAPL1234C</INCOMETAXNUMBER>
  <ADDRESS.LIST><ADDRESS>1 Main St</ADDRESS><ADDRESS>Pune</ADDRESS></ADDRESS.LIST>
  <COUNTRYNAME>India</COUNTRYNAME><LEDSTATENAME>Maharashtra</LEDSTATENAME><PINCODE>411001</PINCODE>
  <LEDGERPHONE>020-1234</LEDGERPHONE><PARTYGSTIN>27AAAPL1234C1Z5</PARTYGSTIN></LEDGER>
<LEDGER NAME="Both Ways"><PARENT>Sundry Creditors</PARENT></LEDGER>
<LEDGER NAME="Cash"><PARENT>Cash-in-hand</PARENT></LEDGER>
</ENVELOPE>`)
	require.NoError(t, err)

	parties, addresses := masters.ExtractParties(root, []string{"Acme", "Both Ways"}, []string{"Both Ways"})

	require.Len(t, parties, 3)
	assert.Equal(t, ledger.PartyRecord{Kind: ledger.PartyCustomer, Name: "Acme", TaxID: "AAAPL1234C"}, parties[0])
	assert.Equal(t, ledger.PartyCustomer, parties[1].Kind)
	assert.Equal(t, ledger.PartySupplier, parties[2].Kind)

	require.Len(t, addresses, 2)
	acme := addresses[0]
	assert.Equal(t, "Acme", acme.Title)
	assert.Equal(t, "1 Main St\nPune", acme.Line1)
	assert.Equal(t, "Maharashtra", acme.State)
	assert.Equal(t, "411001", acme.PinCode)
	assert.Equal(t, "27AAAPL1234C1Z5", acme.GSTIN)
	assert.Equal(t, []ledger.PartyLink{{Kind: ledger.PartyCustomer, Name: "Acme"}}, acme.Links)

	assert.Len(t, addresses[1].Links, 2)
	assert.Equal(t, "Both Ways-Billing", ledger.NewAddressRecord(addresses[1]).Key())
}

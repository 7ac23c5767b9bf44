package ledger

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newDocument(doctype, name string, s Settings) *Document {
	return &Document{Doctype: doctype, Name: name, Company: s.Company}
}

type accountWriter struct{}

func (accountWriter) Kind() Kind { return KindAccount }

func (accountWriter) Write(rec Record, s Settings) (*Document, error) {
	a := rec.Account
	doc := newDocument("Account", s.Qualify(a.Name), s)
	doc.Set("account_name", a.Name)
	if !a.IsRoot() {
		parent := s.Qualify(a.ParentName)
		doc.Set("parent_account", parent)
		doc.Link("Account", parent)
	}
	doc.Set("is_group", boolInt(a.IsGroup))
	doc.Set("root_type", string(a.RootType))
	doc.Set("report_type", a.RootType.ReportType())
	doc.Set("account_type", a.AccountType)
	return doc, nil
}

type partyWriter struct{}

func (partyWriter) Kind() Kind { return KindParty }

func (partyWriter) Write(rec Record, s Settings) (*Document, error) {
	p := rec.Party
	doc := newDocument(string(p.Kind), p.Name, s)
	if p.Kind == PartyCustomer {
		doc.Set("customer_name", p.Name)
		doc.Set("tax_id", p.TaxID)
		doc.Set("customer_group", "All Customer Groups")
		doc.Set("territory", "All Territories")
		doc.Set("customer_type", "Individual")
	} else {
		doc.Set("supplier_name", p.Name)
		doc.Set("pan", p.TaxID)
		doc.Set("supplier_group", "All Supplier Groups")
		doc.Set("supplier_type", "Individual")
	}
	return doc, nil
}

type addressWriter struct{}

func (addressWriter) Kind() Kind { return KindAddress }

func (addressWriter) Write(rec Record, s Settings) (*Document, error) {
	a := rec.Address
	doc := newDocument("Address", rec.Key(), s)
	doc.Set("address_title", a.Title)
	doc.Set("address_type", "Billing")
	doc.Set("address_line1", a.Line1)
	doc.Set("address_line2", a.Line2)
	doc.Set("country", a.Country)
	doc.Set("state", a.State)
	doc.Set("gst_state", a.State)
	doc.Set("pin_code", a.PinCode)
	doc.Set("mobile", a.Phone)
	doc.Set("phone", a.Phone)
	doc.Set("gstin", a.GSTIN)

	rows := make([]Row, 0, len(a.Links))
	for _, l := range a.Links {
		rows = append(rows, Row{
			{Name: "link_doctype", Value: string(l.Kind)},
			{Name: "link_name", Value: l.Name},
		})
		doc.Link(string(l.Kind), l.Name)
	}
	doc.Table("links", rows)
	return doc, nil
}

type uomWriter struct{}

func (uomWriter) Kind() Kind { return KindUOM }

func (uomWriter) Write(rec Record, s Settings) (*Document, error) {
	doc := &Document{Doctype: "UOM", Name: rec.UOM.Name}
	doc.Set("uom_name", rec.UOM.Name)
	return doc, nil
}

type itemWriter struct{}

func (itemWriter) Kind() Kind { return KindItem }

func (itemWriter) Write(rec Record, s Settings) (*Document, error) {
	i := rec.Item
	doc := newDocument("Item", i.Code, s)
	doc.Set("item_code", i.Code)
	doc.Set("item_name", i.Code)
	doc.Set("stock_uom", i.StockUOM)
	doc.Set("is_stock_item", boolInt(i.IsStockItem))
	doc.Set("item_group", i.ItemGroup)
	doc.Table("item_defaults", []Row{{{Name: "company", Value: s.Company}}})
	doc.Link("UOM", i.StockUOM)
	return doc, nil
}

type journalWriter struct{}

func (journalWriter) Kind() Kind { return KindJournal }

func (journalWriter) Write(rec Record, s Settings) (*Document, error) {
	j := rec.Journal
	doc := newDocument("Journal Entry", j.SourceID, s)
	doc.Submittable = true
	doc.Set("title", j.Title)
	doc.Set("voucher_type", j.VoucherType)
	if j.IsOpening {
		doc.Set("is_opening", "Yes")
	} else {
		doc.Set("tally_guid", j.SourceID)
		doc.Set("tally_voucher_no", j.SourceVoucherNo)
	}
	doc.Set("posting_date", j.PostingDate)

	rows := make([]Row, 0, len(j.Lines))
	for _, l := range j.Lines {
		account := s.Qualify(l.Account)
		row := Row{{Name: "account", Value: account}}
		if l.Party != "" {
			row = append(row,
				Field{Name: "party_type", Value: string(l.PartyType)},
				Field{Name: "party", Value: l.Party},
			)
			doc.Link(string(l.PartyType), l.Party)
		}
		row = append(row,
			Field{Name: "cost_center", Value: l.CostCenter},
			Field{Name: "debit_in_account_currency", Value: l.Debit},
			Field{Name: "credit_in_account_currency", Value: l.Credit},
		)
		rows = append(rows, row)
		doc.Link("Account", account)
	}
	doc.Table("accounts", rows)
	return doc, nil
}

type invoiceWriter struct{}

func (invoiceWriter) Kind() Kind { return KindInvoice }

func (invoiceWriter) Write(rec Record, s Settings) (*Document, error) {
	inv := rec.Invoice
	doc := newDocument(inv.Direction.Doctype(), inv.SourceID, s)
	doc.Submittable = true

	partyField, accountField, priceListField, itemAccountField := "customer", "debit_to", "selling_price_list", "income_account"
	if inv.Direction == DirectionPurchase {
		partyField, accountField, priceListField, itemAccountField = "supplier", "credit_to", "buying_price_list", "expense_account"
	}

	control := s.Qualify(inv.ControlAccount)
	doc.Set(partyField, inv.Counterparty)
	doc.Set("tally_guid", inv.SourceID)
	doc.Set("tally_voucher_no", inv.SourceVoucherNo)
	doc.Set("posting_date", inv.PostingDate)
	doc.Set("due_date", inv.DueDate)
	doc.Set(accountField, control)
	doc.Set(priceListField, inv.PriceList)
	doc.Set("set_posting_time", 1)
	doc.Set("disable_rounded_total", 1)
	doc.Link(string(inv.Direction.PartyKind()), inv.Counterparty)
	doc.Link("Account", control)

	items := make([]Row, 0, len(inv.Items))
	for _, it := range inv.Items {
		account := s.Qualify(it.Account)
		items = append(items, Row{
			{Name: "item_code", Value: it.ItemCode},
			{Name: "item_name", Value: it.ItemCode},
			{Name: "description", Value: it.ItemCode},
			{Name: "qty", Value: it.Qty},
			{Name: "uom", Value: it.UOM},
			{Name: "conversion_factor", Value: 1},
			{Name: "rate", Value: it.Rate},
			{Name: "price_list_rate", Value: it.Rate},
			{Name: "cost_center", Value: it.CostCenter},
			{Name: "warehouse", Value: it.Warehouse},
			{Name: itemAccountField, Value: account},
		})
		doc.Link("Item", it.ItemCode)
		doc.Link("Account", account)
	}
	doc.Table("items", items)

	taxes := make([]Row, 0, len(inv.Taxes))
	for _, t := range inv.Taxes {
		account := s.Qualify(t.Account)
		taxes = append(taxes, Row{
			{Name: "charge_type", Value: t.ChargeType},
			{Name: "category", Value: "Total"},
			{Name: "add_deduct_tax", Value: t.AddDeduct},
			{Name: "account_head", Value: account},
			{Name: "description", Value: account},
			{Name: "rate", Value: 0},
			{Name: "tax_amount", Value: t.Amount},
			{Name: "cost_center", Value: t.CostCenter},
		})
		doc.Link("Account", account)
	}
	doc.Table("taxes", taxes)
	return doc, nil
}

package models

type QueryType string

const (
	QueryTypeCompanyFinancials QueryType = "company_financials"
	QueryTypeCompanyList       QueryType = "company_list"
	QueryTypeLenderProfile     QueryType = "lender_profile"
	QueryTypeLoanCandidates    QueryType = "loan_candidates"
	QueryTypeLoanDetail        QueryType = "loan_detail"
	QueryTypeBorrowerProfile   QueryType = "borrower_profile"
)

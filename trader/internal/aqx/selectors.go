package aqx

import (
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/traderig/trader/internal/locator"
)

// The platform tags its controls with data-testid attributes; everything
// here resolves through them, with XPath for the text-anchored pieces the
// markup gives no testid for.

var (
	demoTab = locator.Target{
		Name:     "demo_account_tab",
		Selector: "[data-testid='tab-login-account-type-demo']",
		Mode:     locator.ModeClickable,
	}
	loginUser = locator.Target{
		Name:     "login_user_id",
		Selector: "input[data-testid='login-user-id']",
	}
	loginPassword = locator.Target{
		Name:     "login_password",
		Selector: "input[data-testid='login-password']",
	}
	loginSubmit = locator.Target{
		Name:     "login_submit",
		Selector: "button[data-testid='login-submit']",
		Mode:     locator.ModeClickable,
	}
	// accountBalance is the post-login landmark: the dashboard is usable
	// once it renders.
	accountBalance = locator.Target{
		Name:     "account_balance_landmark",
		Selector: "//div[contains(text(), 'Account Balance')]",
		ByXPath:  true,
		Mode:     locator.ModeVisible,
		Timeout:  20 * time.Second,
	}

	symbolSearch = locator.Target{
		Name:     "symbol_search_input",
		Selector: "input[data-testid='symbol-input-search']",
		Mode:     locator.ModeClickable,
		Timeout:  10 * time.Second,
	}
	symbolOverview = locator.Target{
		Name:     "symbol_overview",
		Selector: "div[data-testid='symbol-overview-id']",
	}
	searchResultHeader = locator.Target{
		Name:     "search_result_header",
		Selector: "//div[@data-testid='symbol-dropdown-result']//div[contains(@class, 'sc-1jx9xug-7') and normalize-space(text())='Search Result']",
		ByXPath:  true,
		Mode:     locator.ModeVisible,
		Timeout:  10 * time.Second,
	}

	volumeInput = locator.Target{
		Name:     "order_volume",
		Selector: "input[data-testid='trade-input-volume']",
		Mode:     locator.ModeClickable,
	}
	stopLossPoints = locator.Target{
		Name:     "stoploss_points",
		Selector: "input[data-testid='trade-input-stoploss-points']",
		Mode:     locator.ModeClickable,
	}
	stopLossPrice = locator.Target{
		Name:     "stoploss_price",
		Selector: "input[data-testid='trade-input-stoploss-price']",
		Mode:     locator.ModeClickable,
	}
	takeProfitPoints = locator.Target{
		Name:     "takeprofit_points",
		Selector: "input[data-testid='trade-input-takeprofit-points']",
		Mode:     locator.ModeClickable,
	}
	takeProfitPrice = locator.Target{
		Name:     "takeprofit_price",
		Selector: "input[data-testid='trade-input-takeprofit-price']",
		Mode:     locator.ModeClickable,
	}
	placeOrder = locator.Target{
		Name:     "place_order_button",
		Selector: "//button[@data-testid='trade-button-order']",
		ByXPath:  true,
		Mode:     locator.ModeClickable,
	}
	// The confirmation dialog button carries no testid; match its label
	// whether the text sits on the button or a nested span.
	confirmButton = locator.Target{
		Name:     "confirm_button",
		Selector: "//button[normalize-space()='Confirm'] | //button/span[normalize-space()='Confirm']",
		ByXPath:  true,
		Mode:     locator.ModeClickable,
		Timeout:  10 * time.Second,
	}

	positionsTab = locator.Target{
		Name:     "open_positions_tab",
		Selector: "div[data-testid='tab-asset-order-type-open-positions']",
		Mode:     locator.ModeClickable,
		Timeout:  10 * time.Second,
	}
	tableOrEmpty = locator.Target{
		Name:     "positions_table_or_empty",
		Selector: "//table[@data-testid='asset-open-table']//thead/tr | //div[contains(text(),'No open positions')]",
		ByXPath:  true,
	}
	selectAllCheckbox = locator.Target{
		Name:     "select_all_positions",
		Selector: "//table[@data-testid='asset-open-table']//thead//input[@type='checkbox']",
		ByXPath:  true,
		Mode:     locator.ModeClickable,
		Timeout:  7 * time.Second,
	}
	bulkCloseButton = locator.Target{
		Name:     "bulk_close_button",
		Selector: "[data-testid='bulk-close']",
		Mode:     locator.ModeClickable,
	}
)

const (
	openTableRowsXPath = "//table[@data-testid='asset-open-table']/tbody/tr"

	// Row cells come back as a mix of th and td elements.
	rowCellsXPath = "./td | ./th"

	// Visible empty-state message, checked without waiting so populated
	// tables do not pay a lookup timeout on every read.
	noPositionsXPath = "//div[contains(text(),'No open positions') and not(contains(@style,'display: none'))]"
)

// sideButton targets the buy or sell toggle. side is "buy" or "sell".
func sideButton(side string) locator.Target {
	return locator.Target{
		Name:     side + "_side_button",
		Selector: fmt.Sprintf("//div[@data-testid='trade-button-order-%s']", side),
		ByXPath:  true,
		Mode:     locator.ModeClickable,
	}
}

// instrumentOption targets a search result entry for the given code. The
// dropdown has no per-item testid, so the XPath anchors on the "Search
// Result" header and walks the styled-components classes the platform
// renders the list with.
func instrumentOption(code string) locator.Target {
	xpath := "//div[contains(@class, 'sc-1jx9xug-7') and normalize-space(text())='Search Result']" +
		"/following-sibling::div[@data-testid='symbol-input-search-items'][1]" +
		fmt.Sprintf("//div[contains(@class, 'sc-1jx9xug-5') and normalize-space(starts-with(., '%s'))]", code) +
		"/ancestor::div[contains(@class, 'sc-1jx9xug-4')][1]"
	return locator.Target{
		Name:     "instrument_option_" + code,
		Selector: xpath,
		ByXPath:  true,
		Mode:     locator.ModeClickable,
	}
}

// closeButtonForOrder targets the Close button inside the row carrying
// orderNo. The label's case varies, so the XPath lowercases it.
func closeButtonForOrder(orderNo string) locator.Target {
	row := fmt.Sprintf(
		"//table[@data-testid='asset-open-table']//tbody//tr[.//td[contains(text(),'%s')] or .//th[contains(text(),'%s')]]",
		orderNo, orderNo)
	return locator.Target{
		Name:     "close_button_order_" + orderNo,
		Selector: row + "//button[contains(translate(normalize-space(), 'CLOSE', 'close'), 'close')]",
		ByXPath:  true,
		Mode:     locator.ModeClickable,
		Timeout:  10 * time.Second,
	}
}

// toastTarget matches any element whose text contains one of the given
// substrings.
func toastTarget(substrings []string, timeout time.Duration) locator.Target {
	preds := make([]string, 0, len(substrings))
	for _, s := range substrings {
		preds = append(preds, fmt.Sprintf("contains(text(), '%s')", s))
	}
	return locator.Target{
		Name:     "toast_notification",
		Selector: "//*[" + strings.Join(preds, " or ") + "]",
		ByXPath:  true,
		Mode:     locator.ModeVisible,
		Timeout:  timeout,
	}
}

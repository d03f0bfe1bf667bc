package aqx

import (
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/traderig/trader/internal/locator"
)

func TestSideButton(t *testing.T) {
	buy := sideButton("buy")
	if buy.Selector != "//div[@data-testid='trade-button-order-buy']" {
		t.Fatalf("buy selector = %q", buy.Selector)
	}
	if !buy.ByXPath || buy.Mode != locator.ModeClickable {
		t.Fatalf("buy target = %+v", buy)
	}
	sell := sideButton("sell")
	if sell.Selector != "//div[@data-testid='trade-button-order-sell']" {
		t.Fatalf("sell selector = %q", sell.Selector)
	}
}

func TestInstrumentOptionAnchorsOnSearchResult(t *testing.T) {
	opt := instrumentOption("DASHUSD.std")
	for _, fragment := range []string{
		"normalize-space(text())='Search Result'",
		"following-sibling::div[@data-testid='symbol-input-search-items'][1]",
		"starts-with(., 'DASHUSD.std')",
		"ancestor::div[contains(@class, 'sc-1jx9xug-4')][1]",
	} {
		if !strings.Contains(opt.Selector, fragment) {
			t.Errorf("selector missing %q:\n%s", fragment, opt.Selector)
		}
	}
	if !opt.ByXPath {
		t.Fatal("instrument option must be an XPath target")
	}
}

func TestCloseButtonForOrder(t *testing.T) {
	target := closeButtonForOrder("123456")
	if !strings.Contains(target.Selector, "contains(text(),'123456')") {
		t.Fatalf("selector does not anchor on order number: %s", target.Selector)
	}
	if !strings.Contains(target.Selector, "translate(normalize-space(), 'CLOSE', 'close')") {
		t.Fatalf("selector does not case-fold the label: %s", target.Selector)
	}
	if target.Timeout != 10*time.Second {
		t.Fatalf("Timeout = %v", target.Timeout)
	}
}

func TestToastTarget(t *testing.T) {
	target := toastTarget([]string{"Market Order Submitted", "Order placed"}, 15*time.Second)
	want := "//*[contains(text(), 'Market Order Submitted') or contains(text(), 'Order placed')]"
	if target.Selector != want {
		t.Fatalf("selector = %q, want %q", target.Selector, want)
	}
	if target.Mode != locator.ModeVisible || target.Timeout != 15*time.Second {
		t.Fatalf("target = %+v", target)
	}

	single := toastTarget([]string{"Order Closed"}, time.Second)
	if single.Selector != "//*[contains(text(), 'Order Closed')]" {
		t.Fatalf("single selector = %q", single.Selector)
	}
}

func TestActiveInstrumentStartsEmpty(t *testing.T) {
	d := New(nil, nil, "", nil)
	if got := d.ActiveInstrument(); got != "" {
		t.Fatalf("ActiveInstrument = %q before any selection", got)
	}
	d.setInstrument("DASHUSD.std")
	if got := d.ActiveInstrument(); got != "DASHUSD.std" {
		t.Fatalf("ActiveInstrument = %q", got)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	d := New(nil, nil, "", nil)
	if d.baseURL != "https://aqxtrader.aquariux.com" {
		t.Fatalf("baseURL = %q", d.baseURL)
	}
}

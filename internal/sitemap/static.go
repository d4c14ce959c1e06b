package sitemap

import "context"

// Static serves a fixed snapshot. The default snapshot describes the eight
// Voyago travel tools and backs the assistant when no live source is
// configured.
type Static struct {
	pages []Page
}

// NewStatic creates a Static source over the given pages.
// With no pages it serves DefaultPages().
func NewStatic(pages []Page) *Static {
	if len(pages) == 0 {
		pages = DefaultPages()
	}
	return &Static{pages: pages}
}

// Pages returns a copy of the snapshot.
func (s *Static) Pages(_ context.Context) ([]Page, error) {
	out := make([]Page, len(s.pages))
	copy(out, s.pages)
	return out, nil
}

// DefaultPages returns the built-in snapshot of the Voyago site.
func DefaultPages() []Page {
	return []Page{
		{
			URL:     "/",
			Title:   "Voyago - Smart Travel Booking",
			Content: "Voyago is your AI-powered travel booking companion offering 8 core travel tools: Hidden Deal Finder for discovering secret airline deals, Budget Airline Tracker for real-time price comparison, Price Drop Notifier for instant alerts, Error Fare Scanner for mistake fares, Multi-City Hack Builder for complex routing, Travel VPN Trick for market-based pricing, Carry-On Only Filter for baggage-free flights, and AI Chat Assistant for support.",
		},
		{
			URL:     "/budget-tracker",
			Title:   "Budget Airline Tracker",
			Content: "Track and compare budget airline prices in real-time using live Amadeus flight data. Search by origin, destination, dates, and budget to find the cheapest flights. Features price tracking, flight comparison, and booking integration.",
		},
		{
			URL:     "/price-drop",
			Title:   "Price Drop Notifier",
			Content: "Monitor saved flight routes for price drops with automatic checking every 6 hours. Receive browser notifications when prices decrease. Connect to Budget Airline Tracker to track specific routes and get instant alerts.",
		},
		{
			URL:     "/carry-on",
			Title:   "Carry-On Only Filter",
			Content: "Find flights that include only carry-on baggage with no checked bag fees. Advanced filtering analyzes baggage allowances to show true carry-on deals. Search by airports, dates, and see flights with special carry-on badges.",
		},
		{
			URL:     "/vpn-trick",
			Title:   "Travel VPN Trick",
			Content: "Search flights from different country markets to find better regional pricing. Select from 12 global VPN server locations including US, UK, Germany, France, Japan, Australia, Canada, India, Brazil, Singapore, Netherlands, and Switzerland. Compare prices across different markets.",
		},
		{
			URL:     "/hidden-deals",
			Title:   "Hidden Deal Finder",
			Content: "Discover secret deals and unpublished fares from airlines. Advanced search techniques to find hidden pricing not available through standard booking sites.",
		},
		{
			URL:     "/error-fare",
			Title:   "Error Fare Scanner",
			Content: "Scan for airline pricing mistakes and error fares that offer significant savings. Monitor for human errors in airline pricing systems.",
		},
		{
			URL:     "/multi-city",
			Title:   "Multi-City Hack Builder",
			Content: "Build complex multi-city flight routes to save money compared to round-trip tickets. Advanced routing optimization for multiple destinations.",
		},
	}
}

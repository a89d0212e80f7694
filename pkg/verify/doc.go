// Package verify confirms a fetched portal page is the page that was asked
// for. Odyssey portals sometimes answer 200 with a placeholder or a stale
// page; a marker (literal text or a CSS selector) distinguishes the real one.
package verify

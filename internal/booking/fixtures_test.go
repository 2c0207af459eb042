package booking

import (
	"context"
	"testing"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/types"
)

const (
	listingURL = "https://buchsys.example/angebote/Volleyball.html"
	popupURL   = "https://buchsys.example/cgi/anmeldung.fcgi"
	formURL    = "https://buchsys.example/cgi/anmeldung.fcgi?step=form"
	reviewURL  = "https://buchsys.example/cgi/anmeldung.fcgi?step=review"
	resultURL  = "https://buchsys.example/cgi/anmeldung.fcgi?step=done"
)

const listingHTML = `
<html>
<head><title>Volleyball</title></head>
<body>
<table class="bs_kurse">
<thead><tr><th>Tag</th><th>Zeit</th><th>Buchung</th></tr></thead>
<tbody>
<tr id="K1"><td class="bs_stag">Mo</td><td class="bs_szeit">08:00-09:30</td><td class="bs_sbuch"><input type="submit" class="bs_btn_buchen" name="BS_Kursid_1" value="buchen"></td></tr>
<tr id="K2"><td class="bs_stag"> Mo </td><td class="bs_szeit">10:30-11:55</td><td class="bs_sbuch"><input type="submit" class="bs_btn_buchen" name="BS_Kursid_2" value="buchen"></td></tr>
<tr><td class="bs_stag">Di</td><td class="bs_szeit">10:30-11:55</td><td class="bs_sbuch"><input type="submit" class="bs_btn_warteliste" value="Warteliste"></td></tr>
<tr><td class="bs_stag">Mi</td><td class="bs_szeit">18:00-19:30</td><td class="bs_sbuch"><span class="bs_btn_autostart">ab 20.10., 12:00</span></td></tr>
<tr><td class="bs_stag">Do</td><td class="bs_szeit">18:00-19:30</td><td class="bs_sbuch"><input type="submit" class="bs_btn_buchen" name="BS_Kursid_5" value="buchen"></td></tr>
</tbody>
</table>
</body>
</html>`

const popupHTML = `
<html>
<head><title>Buchung</title></head>
<body>
<form method="post" action="anmeldung.fcgi">
<p>Volleyball Mo 10:30-11:55</p>
<input type="submit" name="abbrechen" value="Abbrechen">
<input type="submit" name="buchen" value="Buchen">
</form>
</body>
</html>`

const formHTML = `
<html>
<head><title>Anmeldung</title></head>
<body>
<form id="bs_form_main" method="POST" action="anmeldung.fcgi">
<div>
  <label><input type="radio" name="sex" value="M"> männlich</label>
  <label><input type="radio" name="sex" value="W"> weiblich</label>
</div>
<div><label for="BS_F1100">Vorname</label><input type="text" id="BS_F1100" name="vorname" required></div>
<div><label for="BS_F1200">Familienname</label><input type="text" id="BS_F1200" name="name" required></div>
<div><label for="BS_F1300">Straße Nr</label><input type="text" id="BS_F1300" name="strasse"></div>
<div><label for="BS_F1400">PLZ Ort</label><input type="text" id="BS_F1400" name="ort"></div>
<div><label for="BS_F1600">Status</label>
  <select id="BS_F1600" name="statusorig">
    <option value="">bitte auswählen</option>
    <option value="S-RWTH">Student/in der RWTH</option>
    <option value="B-RWTH">Beschäftigte/r der RWTH</option>
    <option value="Extern">Externe/r</option>
  </select>
</div>
<div id="bs_matric" style="display:none"><label for="BS_F1610">Matrikelnummer</label><input type="text" id="BS_F1610" name="matnr"></div>
<div><label for="BS_F2000">E-Mail</label><input type="text" id="BS_F2000" name="email"></div>
<div><label for="BS_F2100">Telefon</label><input type="text" id="BS_F2100" name="telefon"></div>
<div><input type="checkbox" name="tnbed" value="1"><span>Ich akzeptiere die Teilnahmebedingungen</span></div>
<input type="submit" id="bs_submit" value="weiter zur Buchung" disabled>
</form>
</body>
</html>`

const reviewHTML = `
<html>
<head><title>Bestätigung</title></head>
<body>
<p>Bitte überprüfen Sie Ihre Anmeldung.</p>
<form method="post" action="anmeldung.fcgi">
<input type="submit" class="sub" value="zurück">
<input type="submit" class="sub" value="verbindlich buchen">
</form>
</body>
</html>`

const resultHTML = `
<html>
<head><title>Buchungsbestätigung</title></head>
<body><h1>Buchungsbestätigung</h1><p>Ihre Buchung war erfolgreich.</p></body>
</html>`

// siteConfig models the booking site: the listing opens the booking popup,
// the popup leads to the registration form whose student id field shows up
// one second after selecting S-RWTH and whose submit control gets enabled
// shortly after load.
func siteConfig() browser.MockConfig {
	return browser.MockConfig{
		Pages: []browser.MockDocument{
			{URL: listingURL, Content: listingHTML},
			{URL: popupURL, Content: popupHTML},
			{URL: formURL, Content: formHTML},
			{URL: reviewURL, Content: reviewHTML},
			{URL: resultURL, Content: resultHTML},
		},
		Actions: []browser.MockAction{
			{Page: listingURL, Selector: ".bs_btn_buchen", Popup: popupURL, Delay: 20 * time.Millisecond},
			{Page: popupURL, Selector: `input[name="buchen"]`, Navigate: formURL},
			{Page: formURL, Selector: "#bs_submit", Navigate: reviewURL},
			{Page: reviewURL, Selector: `input[value="verbindlich buchen"]`, Navigate: resultURL},
		},
		Reveals: []browser.MockReveal{
			{Page: formURL, Select: "#BS_F1600", Value: "S-RWTH", Target: "#bs_matric", Show: true, Delay: time.Second},
			{Page: formURL, Target: "#bs_submit", Enable: true, Delay: 50 * time.Millisecond},
		},
	}
}

func testProfile() types.UserProfile {
	return types.UserProfile{
		Gender:      "weiblich",
		FirstName:   "Erika",
		LastName:    "Mustermann",
		Address:     "Templergraben 55",
		ZipCity:     "52062 Aachen",
		Status:      "S-RWTH",
		StudentID:   "123456",
		Email:       "erika@example.com",
		Phone:       "0241 80 1",
		AcceptTerms: true,
	}
}

// openPage opens url in a fresh mock browser built from cfg.
func openPage(t *testing.T, cfg browser.MockConfig, url string) (*browser.MockBrowser, *browser.MockPage) {
	t.Helper()
	b, err := browser.NewMockBrowser(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	p, _ := b.NewPage(context.Background())
	if err := p.Navigate(context.Background(), url); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b, p.(*browser.MockPage)
}

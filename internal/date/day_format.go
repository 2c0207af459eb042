package date

import "time"

type langMap struct {
	lang     string
	namesMap map[string]time.Weekday
}

var longDayNames = []langMap{
	{
		lang:     "en_US",
		namesMap: longDayNamesEnUS,
	},
	{
		lang:     "de_DE",
		namesMap: longDayNamesDeDE,
	},
	{
		lang:     "fr_FR",
		namesMap: longDayNamesFrFR,
	},
}

var shortDayNames = []langMap{
	{
		lang:     "en_US",
		namesMap: shortDayNamesEnUS,
	},
	{
		lang:     "de_DE",
		namesMap: shortDayNamesDeDE,
	},
	{
		lang:     "fr_FR",
		namesMap: shortDayNamesFrFR,
	},
}

var shortDayNamesEnUS = map[string]time.Weekday{
	"Sun": time.Sunday,
	"Mon": time.Monday,
	"Tue": time.Tuesday,
	"Wed": time.Wednesday,
	"Thu": time.Thursday,
	"Fri": time.Friday,
	"Sat": time.Saturday,
}

var longDayNamesEnUS = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

var shortDayNamesDeDE = map[string]time.Weekday{
	"So": time.Sunday,
	"Mo": time.Monday,
	"Di": time.Tuesday,
	"Mi": time.Wednesday,
	"Do": time.Thursday,
	"Fr": time.Friday,
	"Sa": time.Saturday,
}

var longDayNamesDeDE = map[string]time.Weekday{
	"Sonntag":    time.Sunday,
	"Montag":     time.Monday,
	"Dienstag":   time.Tuesday,
	"Mittwoch":   time.Wednesday,
	"Donnerstag": time.Thursday,
	"Freitag":    time.Friday,
	"Samstag":    time.Saturday,
}

var shortDayNamesFrFR = map[string]time.Weekday{
	"dim": time.Sunday,
	"lun": time.Monday,
	"mar": time.Tuesday,
	"mer": time.Wednesday,
	"jeu": time.Thursday,
	"ven": time.Friday,
	"sam": time.Saturday,
}

var longDayNamesFrFR = map[string]time.Weekday{
	"dimanche": time.Sunday,
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
}

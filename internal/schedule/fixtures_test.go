package schedule

func tod(s string) TimeOfDay {
	t, ok := ParseTimeOfDay(s)
	if !ok {
		panic("bad fixture time " + s)
	}
	return t
}

// fixtureStore models two routes through a shared stop S2.
//
//	R1 / T1: S1(1) -> S2(2) -> S3(3)
//	R1 / T2: S1(1) -> S2(3)            (short run, non-contiguous sequence)
//	R2 / X.9-00: S4(5) -> S2(10)
func fixtureStore() *Store {
	stops := []Stop{
		{ID: "S1", Code: "101", Name: "Termini", Lat: 41.9010, Lon: 12.5018},
		{ID: "S2", Code: "102", Name: "Cavour", Lat: 41.8955, Lon: 12.4960},
		{ID: "S3", Code: "103", Name: "Colosseo", Lat: 41.8902, Lon: 12.4922},
		{ID: "S4", Code: "104", Name: "Milano Centrale", Lat: 45.4862, Lon: 9.2046},
	}
	trips := []Trip{
		{ID: "T1", RouteID: "R1", ServiceID: "FER", Headsign: "Colosseo", ShortName: "Express", ShapeID: "SH1"},
		{ID: "T2", RouteID: "R1", ServiceID: "FER", Headsign: "Cavour", DirectionID: 1},
		{ID: "X.9-00", RouteID: "R2", ServiceID: "FES", Headsign: "Cavour"},
	}
	stopTimes := []StopTime{
		{TripID: "T1", StopID: "S1", StopSequence: 1, ArrivalTime: tod("08:00:00"), DepartureTime: tod("08:00:30")},
		{TripID: "T1", StopID: "S2", StopSequence: 2, ArrivalTime: tod("08:05:00"), DepartureTime: tod("08:05:30")},
		{TripID: "T1", StopID: "S3", StopSequence: 3, ArrivalTime: tod("08:10:00"), DepartureTime: tod("08:10:30")},
		{TripID: "T2", StopID: "S1", StopSequence: 1, ArrivalTime: tod("08:20:00"), DepartureTime: tod("08:20:00")},
		{TripID: "T2", StopID: "S2", StopSequence: 3, ArrivalTime: tod("08:26:00"), DepartureTime: tod("08:26:00")},
		{TripID: "X.9-00", StopID: "S4", StopSequence: 5, ArrivalTime: NoTime, DepartureTime: tod("09:00:00")},
		{TripID: "X.9-00", StopID: "S2", StopSequence: 10, ArrivalTime: tod("25:15:00"), DepartureTime: tod("25:15:00")},
	}
	return NewStore(stops, trips, stopTimes)
}

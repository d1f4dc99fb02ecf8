package cli

import (
	"errors"
	"fmt"
)

func (r *Root) listRuns(limit int) error {
	if r.store == nil {
		return errors.New("run database not available")
	}
	runs, err := r.store.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No assembly runs recorded.")
		return nil
	}
	fmt.Printf("%-26s %-10s %8s %8s  %s\n", "RUN", "STATUS", "CHANNELS", "FLAGGED", "CUBE")
	for _, run := range runs {
		fmt.Printf("%-26s %-10s %8d %8d  %s\n",
			run.ID, run.Status, run.ChannelCount, run.FlaggedCount, run.CubePath)
	}
	return nil
}

func (r *Root) showRun(runID string) error {
	if r.store == nil {
		return errors.New("run database not available")
	}
	stats, err := r.store.ChannelStats(runID)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return fmt.Errorf("no channel statistics for run %s", runID)
	}
	fmt.Printf("%8s %16s %14s %14s %14s  %s\n",
		"CHANNEL", "FREQ [MHz]", "RMS I [uJy]", "RMS V [uJy]", "PEAK I [uJy]", "FLAG")
	for _, st := range stats {
		flag := ""
		if st.Flagged {
			flag = "flagged"
		}
		fmt.Printf("%8d %16.4f %14.4f %14.4f %14.4f  %s\n",
			st.ChanNo, st.FrequencyHz*1e-6, st.RMSStokesI*1e6, st.RMSStokesV*1e6, st.MaxStokesI*1e6, flag)
	}
	return nil
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"

	"hooliganhorde/core/rewards"
	"hooliganhorde/core/types"
	"hooliganhorde/core/units"
	nativesilo "hooliganhorde/native/silo"
)

type crateOutput struct {
	Gameday    uint64 `json:"gameday"`
	Amount     string `json:"amount"`
	BDV        string `json:"bdv"`
	Horde      string `json:"horde"`
	GrownHorde string `json:"grownHorde,omitempty"`
	Prospects  string `json:"prospects"`
}

type balanceOutput struct {
	Amount     string `json:"amount"`
	BDV        string `json:"bdv"`
	Horde      string `json:"horde"`
	GrownHorde string `json:"grownHorde"`
	Prospects  string `json:"prospects"`
}

type planOutput struct {
	Account   string        `json:"account"`
	Token     string        `json:"token"`
	Gameday   uint64        `json:"gameday"`
	Target    string        `json:"target"`
	Shortfall string        `json:"shortfall"`
	Entries   []crateOutput `json:"entries"`
	Totals    balanceOutput `json:"totals"`
	Applied   bool          `json:"applied"`
}

func formatCrate(crate types.Crate, decimals uint8) crateOutput {
	return crateOutput{
		Gameday:   crate.Gameday,
		Amount:    units.Format(crate.Amount, decimals),
		BDV:       units.BDV(crate.BDV),
		Horde:     units.Horde(crate.Horde),
		Prospects: units.Prospects(crate.Prospects),
	}
}

func formatBalance(balance nativesilo.Balance, decimals uint8) balanceOutput {
	return balanceOutput{
		Amount:     units.Format(balance.Amount, decimals),
		BDV:        units.BDV(balance.BDV),
		Horde:      units.Horde(balance.Horde),
		GrownHorde: units.Horde(balance.GrownHorde),
		Prospects:  units.Prospects(balance.Prospects),
	}
}

func formatPlan(plan nativesilo.Plan, decimals uint8, applied bool) planOutput {
	out := planOutput{
		Account:   plan.Account.Hex(),
		Token:     plan.Token,
		Gameday:   plan.Gameday,
		Target:    units.Format(plan.Target, decimals),
		Shortfall: units.Format(plan.Shortfall, decimals),
		Entries:   make([]crateOutput, 0, len(plan.Entries)),
		Totals:    formatBalance(plan.Totals, decimals),
		Applied:   applied,
	}
	for _, entry := range plan.Entries {
		row := formatCrate(types.Crate{
			Gameday:   entry.Gameday,
			Amount:    entry.Amount,
			BDV:       entry.BDV,
			Horde:     entry.Horde,
			Prospects: entry.Prospects,
		}, decimals)
		row.GrownHorde = units.Horde(entry.GrownHorde)
		out.Entries = append(out.Entries, row)
	}
	return out
}

func printJSON(w io.Writer, value interface{}) int {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(w, string(encoded))
	return 0
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runDeposit(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("deposit", stderr)
	account := fs.String("account", "", "depositor address")
	token := fs.String("token", "", "token symbol")
	amount := fs.String("amount", "", "token amount")
	bdv := fs.String("bdv", "", "bean denominated value of the deposit")
	gameday := fs.Uint64("gameday", 0, "deposit gameday (defaults to the current gameday)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *account == "" || *token == "" || *amount == "" || *bdv == "" {
		fmt.Fprintln(stderr, "Error: --account, --token, --amount and --bdv are required")
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	ledger, err := ws.ledger(*account, *token)
	if err != nil {
		return fail(stderr, err)
	}
	decimals := ledger.Token().Decimals
	rawAmount, err := units.Parse(*amount, decimals)
	if err != nil {
		return fail(stderr, err)
	}
	rawBDV, err := units.Parse(*bdv, rewards.BDVDecimals)
	if err != nil {
		return fail(stderr, err)
	}
	target := ws.clock.Current()
	if *gameday != 0 {
		if *gameday > target {
			return fail(stderr, fmt.Errorf("deposit gameday %d is ahead of current gameday %d", *gameday, target))
		}
		target = *gameday
	}
	crate, err := ledger.Deposit(target, rawAmount, rawBDV)
	if err != nil {
		return fail(stderr, err)
	}
	if err := ws.store.SaveLedger(ledger); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, formatCrate(crate, decimals))
}

func runCrates(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("crates", stderr)
	account := fs.String("account", "", "depositor address")
	token := fs.String("token", "", "token symbol")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *account == "" || *token == "" {
		fmt.Fprintln(stderr, "Error: --account and --token are required")
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	ledger, err := ws.ledger(*account, *token)
	if err != nil {
		return fail(stderr, err)
	}
	current := ws.clock.Current()
	decimals := ledger.Token().Decimals
	totals, err := ledger.Totals(current)
	if err != nil {
		return fail(stderr, err)
	}
	crates := make([]crateOutput, 0, ledger.Len())
	for _, crate := range ledger.Crates() {
		row := formatCrate(crate, decimals)
		grown, err := ws.silo.Model().GrownHorde(crate, current)
		if err != nil {
			return fail(stderr, err)
		}
		row.GrownHorde = units.Horde(grown)
		crates = append(crates, row)
	}
	return printJSON(stdout, map[string]interface{}{
		"account": ledger.Account().Hex(),
		"token":   ledger.Token().Symbol,
		"gameday": current,
		"crates":  crates,
		"totals":  formatBalance(totals, decimals),
	})
}

// planFlags holds the flags shared by plan, withdraw and export.
type planFlags struct {
	account *string
	token   *string
	amount  *string
	recruit *string
}

func registerPlanFlags(fs *flag.FlagSet) planFlags {
	return planFlags{
		account: fs.String("account", "", "depositor address"),
		token:   fs.String("token", "", "token symbol"),
		amount:  fs.String("amount", "", "amount to withdraw"),
		recruit: fs.String("recruit", "", "earned tokens recruited before withdrawing"),
	}
}

func (p planFlags) complete() bool {
	return *p.account != "" && *p.token != "" && *p.amount != ""
}

func (p planFlags) build(ws *workspace) (*nativesilo.Ledger, nativesilo.Plan, error) {
	ledger, err := ws.ledger(*p.account, *p.token)
	if err != nil {
		return nil, nativesilo.Plan{}, err
	}
	token := ledger.Token()
	target, err := units.Parse(*p.amount, token.Decimals)
	if err != nil {
		return nil, nativesilo.Plan{}, err
	}
	recruit, err := parseOptional(*p.recruit, token.Decimals)
	if err != nil {
		return nil, nativesilo.Plan{}, err
	}
	current := ws.clock.Current()
	planner := nativesilo.NewPlanner(ws.silo.Model())
	if recruit == nil || recruit.Sign() == 0 {
		plan, err := planner.Plan(ledger, target, current)
		return ledger, plan, err
	}
	crate, err := nativesilo.RecruitCrate(ws.silo.Model(), token, current, recruit)
	if err != nil {
		return nil, nativesilo.Plan{}, err
	}
	plan, err := planner.PlanWithRecruit(ledger, crate, target, current)
	return ledger, plan, err
}

func runPlan(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("plan", stderr)
	flags := registerPlanFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !flags.complete() {
		fmt.Fprintln(stderr, "Error: --account, --token and --amount are required")
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	ledger, plan, err := flags.build(ws)
	if err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, formatPlan(plan, ledger.Token().Decimals, false))
}

func runWithdraw(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("withdraw", stderr)
	flags := registerPlanFlags(fs)
	allowShortfall := fs.Bool("allow-shortfall", false, "withdraw what is available when the ledger cannot cover the amount")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !flags.complete() {
		fmt.Fprintln(stderr, "Error: --account, --token and --amount are required")
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	ledger, plan, err := flags.build(ws)
	if err != nil {
		return fail(stderr, err)
	}
	decimals := ledger.Token().Decimals
	if plan.Shortfall.Sign() > 0 && !*allowShortfall {
		fmt.Fprintf(stderr, "Error: shortfall of %s %s; rerun with --allow-shortfall\n", units.Format(plan.Shortfall, decimals), plan.Token)
		return 1
	}
	if _, err := nativesilo.Apply(ledger, plan); err != nil {
		return fail(stderr, err)
	}
	if err := ws.store.SaveLedger(ledger); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, formatPlan(plan, decimals, true))
}

func runConvert(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("convert", stderr)
	account := fs.String("account", "", "depositor address")
	from := fs.String("from", "", "source token symbol")
	to := fs.String("to", "", "destination token symbol")
	gameday := fs.Uint64("gameday", 0, "gameday of the source crate")
	amount := fs.String("amount", "", "source amount to convert")
	toAmount := fs.String("to-amount", "", "destination amount received (defaults to the source amount)")
	bdv := fs.String("bdv", "", "bdv of the converted crate (defaults to the removed bdv)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *account == "" || *from == "" || *to == "" || *amount == "" || *gameday == 0 {
		fmt.Fprintln(stderr, "Error: --account, --from, --to, --gameday and --amount are required")
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	source, err := ws.ledger(*account, *from)
	if err != nil {
		return fail(stderr, err)
	}
	destination, err := ws.ledger(*account, *to)
	if err != nil {
		return fail(stderr, err)
	}
	rawAmount, err := units.Parse(*amount, source.Token().Decimals)
	if err != nil {
		return fail(stderr, err)
	}
	target := nativesilo.ConvertTarget{ProspectsPerBDV: destination.Token().ProspectsPerBDV}
	if target.Amount, err = parseOptional(*toAmount, destination.Token().Decimals); err != nil {
		return fail(stderr, err)
	}
	if target.BDV, err = parseOptional(*bdv, rewards.BDVDecimals); err != nil {
		return fail(stderr, err)
	}
	converted, err := nativesilo.NewConverter(ws.silo.Model(), ws.clock).ConvertInto(source, destination, *gameday, rawAmount, target)
	if err != nil {
		return fail(stderr, err)
	}
	if err := ws.store.SaveLedger(source); err != nil {
		return fail(stderr, err)
	}
	if destination != source {
		if err := ws.store.SaveLedger(destination); err != nil {
			return fail(stderr, err)
		}
	}
	return printJSON(stdout, formatCrate(converted, destination.Token().Decimals))
}

func runFastForward(configPath string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("fast-forward", stderr)
	gamedays := fs.Uint64("gamedays", 1, "number of gamedays to advance")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *gamedays == 0 {
		fmt.Fprintln(stderr, "Error: --gamedays must be positive")
		return 1
	}
	ws, err := openWorkspace(configPath)
	if err != nil {
		return fail(stderr, err)
	}
	defer ws.Close()

	previous := ws.clock.Current()
	current, err := ws.clock.Peek(*gamedays)
	if err != nil {
		return fail(stderr, err)
	}
	if err := ws.store.PutGameday(current); err != nil {
		return fail(stderr, err)
	}
	if err := ws.clock.Set(current); err != nil {
		return fail(stderr, err)
	}
	return printJSON(stdout, map[string]uint64{"previous": previous, "gameday": current})
}

func sumAmounts(values []*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
